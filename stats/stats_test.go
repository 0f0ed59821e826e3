package stats

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestComputeLiteralScenarios(t *testing.T) {
	cases := []struct {
		name   string
		op     Op
		series []float64
		want   float64
	}{
		{"mean", OpMean, []float64{1, 2, 3, 4, 5}, 3.0},
		{"median even", OpMedian, []float64{1, 2, 3, 4}, 2.5},
		{"median odd", OpMedian, []float64{5, 1, 3}, 3.0},
		{"sum", OpSum, []float64{1.5, 2.5, -1}, 3.0},
		{"min", OpMin, []float64{4, -2, 9}, -2},
		{"max", OpMax, []float64{4, -2, 9}, 9},
		// Sample variance with Bessel's correction: sum of squared
		// deviations 32 divided by n-1 = 7, not n = 8.
		{"sample variance", OpVariance, []float64{2, 4, 4, 4, 5, 5, 7, 9}, 32.0 / 7.0},
		{"sample std", OpStd, []float64{2, 4, 4, 4, 5, 5, 7, 9}, math.Sqrt(32.0 / 7.0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.op, tc.series)
			if err != nil {
				t.Fatalf("Compute(%s): %v", tc.op, err)
			}
			if !almostEqual(got, tc.want) {
				t.Fatalf("Compute(%s) = %v, want %v", tc.op, got, tc.want)
			}
		})
	}
}

func TestComputeEmptySeries(t *testing.T) {
	for _, op := range Ops {
		if _, err := Compute(op, nil); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("Compute(%s, empty) error = %v, want ErrEmptyInput", op, err)
		}
	}
}

func TestVarianceRequiresTwoPoints(t *testing.T) {
	if _, err := Compute(OpVariance, []float64{5}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("variance of singleton error = %v, want ErrInsufficientData", err)
	}
	if _, err := Compute(OpStd, []float64{5}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("std of singleton error = %v, want ErrInsufficientData", err)
	}
}

func TestComputeUnknownOp(t *testing.T) {
	if _, err := Compute(Op("mode"), []float64{1, 2}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("unknown op error = %v, want ErrUnknownOp", err)
	}
	if _, ok := ParseOp("mode"); ok {
		t.Fatal("ParseOp accepted an unknown operation")
	}
	if op, ok := ParseOp("median"); !ok || op != OpMedian {
		t.Fatalf("ParseOp(median) = %v, %v", op, ok)
	}
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	series := []float64{9, 1, 5, 3}
	_ = Median(series)
	want := []float64{9, 1, 5, 3}
	for i := range series {
		if series[i] != want[i] {
			t.Fatalf("input mutated at %d: %v", i, series)
		}
	}
}

func TestBoundsProperty(t *testing.T) {
	// min(s) <= mean(s) <= max(s) and min(s) <= median(s) <= max(s).
	seriesSet := [][]float64{
		{1},
		{3, 3, 3},
		{-5, 2, 8, 0.5},
		{100, -100, 0, 42, 17, -3.5},
	}
	for _, s := range seriesSet {
		lo, hi := Min(s), Max(s)
		for _, v := range []float64{Mean(s), Median(s)} {
			if v < lo-tolerance || v > hi+tolerance {
				t.Fatalf("central value %v outside [%v, %v] for %v", v, lo, hi, s)
			}
		}
	}
}

func TestAllEqualSeriesHasZeroSpread(t *testing.T) {
	s := []float64{7, 7, 7, 7}
	v, err := Variance(s)
	if err != nil {
		t.Fatalf("Variance: %v", err)
	}
	if v != 0 {
		t.Fatalf("variance of constant series = %v, want 0", v)
	}
	sd, err := Std(s)
	if err != nil {
		t.Fatalf("Std: %v", err)
	}
	if sd != 0 {
		t.Fatalf("std of constant series = %v, want 0", sd)
	}
}

func TestCorrelatePerfectLinear(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}

	report, err := Correlate(a, b)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if !almostEqual(report.Coefficient, 1.0) {
		t.Fatalf("coefficient = %v, want 1.0", report.Coefficient)
	}
	if report.Strength != StrengthStrong {
		t.Fatalf("strength = %q, want %q", report.Strength, StrengthStrong)
	}
	if report.Direction != DirectionPositive {
		t.Fatalf("direction = %q, want %q", report.Direction, DirectionPositive)
	}
	if report.N != 5 {
		t.Fatalf("n = %d, want 5", report.N)
	}
	if !almostEqual(report.SeriesA.Mean, 3.0) {
		t.Fatalf("series_a mean = %v, want 3.0", report.SeriesA.Mean)
	}
}

func TestCorrelateNegative(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{8, 6, 4, 2}

	report, err := Correlate(a, b)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if !almostEqual(report.Coefficient, -1.0) {
		t.Fatalf("coefficient = %v, want -1.0", report.Coefficient)
	}
	if report.Direction != DirectionNegative {
		t.Fatalf("direction = %q, want negative", report.Direction)
	}
}

func TestCorrelateDegenerate(t *testing.T) {
	constant := []float64{4, 4, 4}
	varying := []float64{1, 2, 3}

	if _, err := Correlate(constant, varying); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("constant first series error = %v, want ErrDegenerateInput", err)
	}
	if _, err := Correlate(varying, constant); !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("constant second series error = %v, want ErrDegenerateInput", err)
	}
}

func TestCorrelateShapeChecks(t *testing.T) {
	if _, err := Correlate([]float64{1, 2}, []float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("unequal lengths error = %v, want ErrShapeMismatch", err)
	}
	if _, err := Correlate([]float64{1}, []float64{2}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("length-1 pair error = %v, want ErrInsufficientData", err)
	}
}

func TestStrengthBands(t *testing.T) {
	cases := []struct {
		r    float64
		want string
	}{
		{0.95, StrengthStrong},
		{-0.7, StrengthStrong},
		{0.5, StrengthModerate},
		{-0.4, StrengthModerate},
		{0.2, StrengthWeak},
		{0.05, StrengthNegligible},
		{0, StrengthNegligible},
	}
	for _, tc := range cases {
		if got := StrengthBand(tc.r); got != tc.want {
			t.Fatalf("StrengthBand(%v) = %q, want %q", tc.r, got, tc.want)
		}
	}
}

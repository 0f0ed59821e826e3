// Package stats implements the descriptive statistics and correlation
// computations behind the statserve tools. All computation is double
// precision; the package holds no state and never mutates caller input.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Op selects the statistic computed by Compute. The set is closed; unknown
// values are rejected with ErrUnknownOp.
type Op string

const (
	OpMean     Op = "mean"
	OpMedian   Op = "median"
	OpStd      Op = "std"
	OpMin      Op = "min"
	OpMax      Op = "max"
	OpSum      Op = "sum"
	OpVariance Op = "variance"
)

// Ops lists the supported operations in a stable order.
var Ops = []Op{OpMean, OpMedian, OpStd, OpMin, OpMax, OpSum, OpVariance}

// ParseOp maps an operation name onto its Op, reporting whether the name is
// part of the supported set.
func ParseOp(name string) (Op, bool) {
	for _, op := range Ops {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

var (
	// ErrEmptyInput is returned when a statistic requiring a central
	// tendency receives an empty series.
	ErrEmptyInput = errors.New("stats: empty series")
	// ErrInsufficientData is returned when variance or standard deviation
	// is requested for fewer than two observations.
	ErrInsufficientData = errors.New("stats: need at least 2 data points")
	// ErrShapeMismatch is returned when paired series differ in length.
	ErrShapeMismatch = errors.New("stats: series must have the same length")
	// ErrDegenerateInput is returned when correlation is undefined because
	// one series has zero variance.
	ErrDegenerateInput = errors.New("stats: correlation undefined for a constant series")
	// ErrUnknownOp is returned for operation names outside the supported set.
	ErrUnknownOp = errors.New("stats: unknown operation")
)

// Compute evaluates op over series. Emptiness and minimum-length preconditions
// are normally enforced by the validation gate; they are re-checked here so
// the engine never divides by zero or indexes past the input.
func Compute(op Op, series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, ErrEmptyInput
	}
	switch op {
	case OpMean:
		return Mean(series), nil
	case OpMedian:
		return Median(series), nil
	case OpStd:
		return Std(series)
	case OpVariance:
		return Variance(series)
	case OpMin:
		return Min(series), nil
	case OpMax:
		return Max(series), nil
	case OpSum:
		return Sum(series), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

// Mean returns the arithmetic mean using straightforward accumulation in
// input order. The result is order-sensitive for pathological magnitudes;
// no compensated (Kahan) summation is performed.
func Mean(series []float64) float64 {
	return Sum(series) / float64(len(series))
}

// Sum reduces the series by addition in input order.
func Sum(series []float64) float64 {
	var total float64
	for _, v := range series {
		total += v
	}
	return total
}

// Min returns the smallest element.
func Min(series []float64) float64 {
	m := series[0]
	for _, v := range series[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest element.
func Max(series []float64) float64 {
	m := series[0]
	for _, v := range series[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Median sorts a copy of the series ascending and returns the middle element,
// or the mean of the two middle elements for even lengths. The caller's slice
// is never reordered.
func Median(series []float64) float64 {
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Stable(sort.Float64Slice(sorted))

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Variance returns the sample variance: the sum of squared deviations from
// the mean divided by n-1 (Bessel's correction), not n. This is a pinned
// convention for statistics over observed data.
func Variance(series []float64) (float64, error) {
	if len(series) < 2 {
		return 0, ErrInsufficientData
	}
	mean := Mean(series)
	var ss float64
	for _, v := range series {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(series)-1), nil
}

// Std returns the sample standard deviation, the square root of Variance.
func Std(series []float64) (float64, error) {
	v, err := Variance(series)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Summary captures the per-series descriptive figures reported alongside a
// correlation coefficient.
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Report is the result of a pairwise correlation.
type Report struct {
	Coefficient float64 `json:"coefficient"`
	N           int     `json:"n"`
	Strength    string  `json:"strength"`
	Direction   string  `json:"direction"`
	SeriesA     Summary `json:"series_a"`
	SeriesB     Summary `json:"series_b"`
}

// Strength band thresholds. The banding is a reporting convention, not
// statistics textbook law: |r| >= 0.7 strong, >= 0.4 moderate, >= 0.1 weak,
// anything below negligible.
const (
	strongThreshold     = 0.7
	moderateThreshold   = 0.4
	weakThreshold       = 0.1
	varianceEpsilon     = 0.0 // exact zero variance only; near-zero still correlates
	StrengthStrong      = "strong"
	StrengthModerate    = "moderate"
	StrengthWeak        = "weak"
	StrengthNegligible  = "negligible"
	DirectionPositive   = "positive"
	DirectionNegative   = "negative"
	DirectionNone       = "none"
)

// StrengthBand classifies a correlation coefficient by magnitude.
func StrengthBand(r float64) string {
	abs := math.Abs(r)
	switch {
	case abs >= strongThreshold:
		return StrengthStrong
	case abs >= moderateThreshold:
		return StrengthModerate
	case abs >= weakThreshold:
		return StrengthWeak
	default:
		return StrengthNegligible
	}
}

func direction(r float64) string {
	switch {
	case r > 0:
		return DirectionPositive
	case r < 0:
		return DirectionNegative
	default:
		return DirectionNone
	}
}

// Correlate computes the Pearson product-moment correlation between two
// equal-length series as covariance divided by the product of the sample
// standard deviations. A series with zero variance makes the coefficient
// undefined: the result is ErrDegenerateInput, never NaN.
func Correlate(a, b []float64) (Report, error) {
	if len(a) != len(b) {
		return Report{}, ErrShapeMismatch
	}
	if len(a) < 2 {
		return Report{}, ErrInsufficientData
	}

	meanA, meanB := Mean(a), Mean(b)
	var cov, ssA, ssB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		ssA += da * da
		ssB += db * db
	}
	if ssA <= varianceEpsilon || ssB <= varianceEpsilon {
		return Report{}, ErrDegenerateInput
	}

	n := float64(len(a) - 1)
	sdA := math.Sqrt(ssA / n)
	sdB := math.Sqrt(ssB / n)
	r := (cov / n) / (sdA * sdB)

	// Floating accumulation can push |r| a hair past 1.
	r = math.Max(-1, math.Min(1, r))

	return Report{
		Coefficient: r,
		N:           len(a),
		Strength:    StrengthBand(r),
		Direction:   direction(r),
		SeriesA:     Summary{Mean: meanA, Std: sdA},
		SeriesB:     Summary{Mean: meanB, Std: sdB},
	}, nil
}

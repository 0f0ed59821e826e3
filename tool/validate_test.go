package tool

import (
	"math"
	"testing"
)

func seriesSchema() Schema {
	return Schema{
		Params: []Param{
			{Name: "series", Kind: KindSeries, Required: true},
		},
	}
}

func TestValidateNormalizesSeries(t *testing.T) {
	args, err := Validate(seriesSchema(), map[string]any{
		"series": []any{1.0, 2.0, 3.5},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	series, ok := SeriesArg(args, "series")
	if !ok {
		t.Fatal("series missing from normalized args")
	}
	if len(series) != 3 || series[2] != 3.5 {
		t.Fatalf("series = %v", series)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	_, err := Validate(seriesSchema(), map[string]any{})
	if err == nil || err.Kind != KindTypeMismatch {
		t.Fatalf("err = %v, want kind %s", err, KindTypeMismatch)
	}
}

func TestValidateEmptySeries(t *testing.T) {
	_, err := Validate(seriesSchema(), map[string]any{"series": []any{}})
	if err == nil || err.Kind != KindEmptyInput {
		t.Fatalf("err = %v, want kind %s", err, KindEmptyInput)
	}
}

func TestValidateSeriesTypeMismatch(t *testing.T) {
	cases := []any{
		"not a list",
		[]any{1.0, "two"},
		[]any{1.0, math.NaN()},
		[]any{math.Inf(1)},
	}
	for _, raw := range cases {
		_, err := Validate(seriesSchema(), map[string]any{"series": raw})
		if err == nil || err.Kind != KindTypeMismatch {
			t.Fatalf("series %v: err = %v, want kind %s", raw, err, KindTypeMismatch)
		}
	}
}

func TestValidateEnumRejectsUnknownOperation(t *testing.T) {
	schema := Schema{
		Params: []Param{
			{Name: "operation", Kind: KindString, Required: true, Enum: []string{"mean", "sum"}},
		},
	}
	_, err := Validate(schema, map[string]any{"operation": "mode"})
	if err == nil || err.Kind != KindUnknownOperation {
		t.Fatalf("err = %v, want kind %s", err, KindUnknownOperation)
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	schema := Schema{
		Params: []Param{
			{Name: "period", Kind: KindString, Default: "1y"},
		},
	}
	args, err := Validate(schema, map[string]any{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got, _ := StringArg(args, "period"); got != "1y" {
		t.Fatalf("period default = %q, want 1y", got)
	}
}

func TestValidateStringListCapsItems(t *testing.T) {
	schema := Schema{
		Params: []Param{
			{Name: "tickers", Kind: KindStringList, Required: true, MaxItems: 2},
		},
	}
	args, err := Validate(schema, map[string]any{
		"tickers": []any{"AAPL", "MSFT", "GOOG"},
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	tickers, _ := StringListArg(args, "tickers")
	if len(tickers) != 2 {
		t.Fatalf("tickers = %v, want 2 entries", tickers)
	}
}

func TestRuleSeriesPair(t *testing.T) {
	rule := RuleSeriesPair("a", "b", 2)

	if err := rule(map[string]any{"a": []float64{1, 2}, "b": []float64{3, 4}}); err != nil {
		t.Fatalf("equal pair: %v", err)
	}
	if err := rule(map[string]any{"a": []float64{1, 2}, "b": []float64{3}}); err == nil || err.Kind != KindShapeMismatch {
		t.Fatalf("unequal pair err = %v, want %s", err, KindShapeMismatch)
	}
	if err := rule(map[string]any{"a": []float64{1}, "b": []float64{3}}); err == nil || err.Kind != KindInsufficientData {
		t.Fatalf("short pair err = %v, want %s", err, KindInsufficientData)
	}
}

func TestRuleConditionalMinLen(t *testing.T) {
	rule := RuleConditionalMinLen("operation", []string{"variance", "std"}, "series", 2)

	args := map[string]any{"operation": "variance", "series": []float64{5}}
	if err := rule(args); err == nil || err.Kind != KindInsufficientData {
		t.Fatalf("variance singleton err = %v, want %s", err, KindInsufficientData)
	}

	args = map[string]any{"operation": "mean", "series": []float64{5}}
	if err := rule(args); err != nil {
		t.Fatalf("mean singleton should pass, got %v", err)
	}
}

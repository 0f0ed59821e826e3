package tool

import (
	"encoding/json"
	"math"
)

// Validate checks raw arguments against a schema and returns the normalized
// argument map. It is a pure function: no side effects, and every failure is
// a typed *InvokeError, never a panic.
//
// Normalization gives each declared parameter a concrete Go type: series
// become []float64, string lists become []string, numbers become float64.
// Defaults are applied for absent optional parameters. Domain rules run last,
// over the normalized map.
func Validate(schema Schema, raw map[string]any) (map[string]any, *InvokeError) {
	normalized := make(map[string]any, len(schema.Params))

	for _, param := range schema.Params {
		value, present := raw[param.Name]
		if !present || value == nil {
			if param.Required {
				return nil, NewInvokeError(KindTypeMismatch,
					"missing required parameter %q (%s)", param.Name, param.Kind)
			}
			if param.Default != nil {
				normalized[param.Name] = param.Default
			}
			continue
		}

		coerced, err := coerceParam(param, value)
		if err != nil {
			return nil, err
		}
		normalized[param.Name] = coerced
	}

	for _, rule := range schema.Rules {
		if err := rule(normalized); err != nil {
			return nil, err
		}
	}
	return normalized, nil
}

func coerceParam(param Param, value any) (any, *InvokeError) {
	switch param.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, NewInvokeError(KindTypeMismatch,
				"parameter %q must be a string", param.Name)
		}
		if len(param.Enum) > 0 && !contains(param.Enum, s) {
			// A closed operation set rejects unknown members as an
			// unknown operation, not a crash.
			return nil, NewInvokeError(KindUnknownOperation,
				"parameter %q: unsupported value %q", param.Name, s)
		}
		return s, nil

	case KindNumber:
		f, ok := asFloat(value)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, NewInvokeError(KindTypeMismatch,
				"parameter %q must be a finite number", param.Name)
		}
		return f, nil

	case KindSeries:
		items, ok := value.([]any)
		if !ok {
			if typed, isTyped := value.([]float64); isTyped {
				items = make([]any, len(typed))
				for i, v := range typed {
					items[i] = v
				}
			} else {
				return nil, NewInvokeError(KindTypeMismatch,
					"parameter %q must be a list of numbers", param.Name)
			}
		}
		if len(items) == 0 {
			return nil, NewInvokeError(KindEmptyInput,
				"parameter %q must not be empty", param.Name)
		}
		series := make([]float64, len(items))
		for i, item := range items {
			f, ok := asFloat(item)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, NewInvokeError(KindTypeMismatch,
					"parameter %q element %d is not a finite number", param.Name, i)
			}
			series[i] = f
		}
		return series, nil

	case KindStringList:
		items, ok := value.([]any)
		if !ok {
			if typed, isTyped := value.([]string); isTyped {
				items = make([]any, len(typed))
				for i, v := range typed {
					items[i] = v
				}
			} else {
				return nil, NewInvokeError(KindTypeMismatch,
					"parameter %q must be a list of strings", param.Name)
			}
		}
		if len(items) == 0 {
			return nil, NewInvokeError(KindEmptyInput,
				"parameter %q must not be empty", param.Name)
		}
		list := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, NewInvokeError(KindTypeMismatch,
					"parameter %q element %d is not a string", param.Name, i)
			}
			list[i] = s
		}
		if param.MaxItems > 0 && len(list) > param.MaxItems {
			list = list[:param.MaxItems]
		}
		return list, nil

	default:
		return nil, NewInvokeError(KindTypeMismatch,
			"parameter %q has unsupported kind %q", param.Name, param.Kind)
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(set []string, s string) bool {
	for _, member := range set {
		if member == s {
			return true
		}
	}
	return false
}

// RuleSeriesMinLen requires a series parameter to carry at least n points.
func RuleSeriesMinLen(name string, n int) Rule {
	return func(args map[string]any) *InvokeError {
		series, ok := SeriesArg(args, name)
		if !ok {
			return nil
		}
		if len(series) < n {
			return NewInvokeError(KindInsufficientData,
				"parameter %q needs at least %d data points, got %d", name, n, len(series))
		}
		return nil
	}
}

// RuleSeriesPair requires two series parameters to have equal length of at
// least minLen, the precondition for pairwise correlation.
func RuleSeriesPair(a, b string, minLen int) Rule {
	return func(args map[string]any) *InvokeError {
		seriesA, okA := SeriesArg(args, a)
		seriesB, okB := SeriesArg(args, b)
		if !okA || !okB {
			return nil
		}
		if len(seriesA) != len(seriesB) {
			return NewInvokeError(KindShapeMismatch,
				"parameters %q and %q must have the same length (%d != %d)",
				a, b, len(seriesA), len(seriesB))
		}
		if len(seriesA) < minLen {
			return NewInvokeError(KindInsufficientData,
				"parameters %q and %q need at least %d data points, got %d",
				a, b, minLen, len(seriesA))
		}
		return nil
	}
}

// RuleConditionalMinLen requires a series to carry at least n points when an
// enumerated parameter takes one of the listed values. Used to demand two
// observations for variance and standard deviation while leaving the other
// operations at one.
func RuleConditionalMinLen(enumParam string, values []string, seriesParam string, n int) Rule {
	return func(args map[string]any) *InvokeError {
		selected, ok := StringArg(args, enumParam)
		if !ok || !contains(values, selected) {
			return nil
		}
		series, ok := SeriesArg(args, seriesParam)
		if !ok {
			return nil
		}
		if len(series) < n {
			return NewInvokeError(KindInsufficientData,
				"operation %q needs at least %d data points, got %d", selected, n, len(series))
		}
		return nil
	}
}

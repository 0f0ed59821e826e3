package tool

import (
	"context"

	"github.com/spindrift-labs/statserve/config"
	"github.com/spindrift-labs/statserve/stats"
)

func opNames() []string {
	names := make([]string, 0, len(stats.Ops))
	for _, op := range stats.Ops {
		names = append(names, string(op))
	}
	return names
}

// DescribeRegistration exposes the descriptive statistics engine as the
// "describe" tool: one operation name from the closed set, one numeric series.
func DescribeRegistration() Registration {
	return Registration{
		Name:        "describe",
		Description: "Compute a descriptive statistic (mean, median, std, min, max, sum, variance) over a numeric series.",
		Schema: Schema{
			Params: []Param{
				{
					Name:        "operation",
					Kind:        KindString,
					Required:    true,
					Enum:        opNames(),
					Description: "Statistic to compute.",
				},
				{
					Name:        "series",
					Kind:        KindSeries,
					Required:    true,
					Description: "Ordered list of finite real numbers.",
				},
			},
			Rules: []Rule{
				// Sample variance and std divide by n-1 and need two points.
				RuleConditionalMinLen("operation",
					[]string{string(stats.OpVariance), string(stats.OpStd)}, "series", 2),
			},
		},
		Handler: describeHandler,
	}
}

func describeHandler(_ context.Context, args map[string]any) (map[string]any, error) {
	name, _ := StringArg(args, "operation")
	series, _ := SeriesArg(args, "series")

	op, ok := stats.ParseOp(name)
	if !ok {
		return nil, NewInvokeError(KindUnknownOperation, "unsupported operation %q", name)
	}
	value, err := stats.Compute(op, series)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"operation": string(op),
		"n":         len(series),
		"value":     value,
	}, nil
}

// CorrelateRegistration exposes pairwise Pearson correlation as the
// "correlate" tool.
func CorrelateRegistration() Registration {
	return Registration{
		Name:        "correlate",
		Description: "Compute the Pearson correlation coefficient between two equal-length numeric series.",
		Schema: Schema{
			Params: []Param{
				{
					Name:        "series_a",
					Kind:        KindSeries,
					Required:    true,
					Description: "First series.",
				},
				{
					Name:        "series_b",
					Kind:        KindSeries,
					Required:    true,
					Description: "Second series; must match the first in length.",
				},
			},
			Rules: []Rule{
				RuleSeriesPair("series_a", "series_b", 2),
			},
		},
		Handler: correlateHandler,
	}
}

func correlateHandler(_ context.Context, args map[string]any) (map[string]any, error) {
	a, _ := SeriesArg(args, "series_a")
	b, _ := SeriesArg(args, "series_b")

	report, err := stats.Correlate(a, b)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"coefficient": report.Coefficient,
		"n":           report.N,
		"strength":    report.Strength,
		"direction":   report.Direction,
		"series_a":    map[string]any{"mean": report.SeriesA.Mean, "std": report.SeriesA.Std},
		"series_b":    map[string]any{"mean": report.SeriesB.Mean, "std": report.SeriesB.Std},
	}, nil
}

// ServiceInfoRegistration exposes service identity resolved through the
// configuration layer, the config-backed counterpart to the numeric tools.
func ServiceInfoRegistration(resolver *config.Resolver) Registration {
	return Registration{
		Name:        "service_info",
		Description: "Report service name, version, and protocol metadata.",
		Schema:      Schema{},
		Handler: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{
				"name":             resolver.GetString("name", "statserve"),
				"version":          resolver.GetString("version", "dev"),
				"description":      resolver.GetString("description", ""),
				"protocol_version": resolver.GetString("protocol_version", ""),
			}, nil
		},
	}
}

// Builtins returns the registrations every statserve deployment carries.
func Builtins(resolver *config.Resolver) []Registration {
	return []Registration{
		DescribeRegistration(),
		CorrelateRegistration(),
		ServiceInfoRegistration(resolver),
	}
}

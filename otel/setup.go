package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls telemetry bootstrap.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// TraceEndpoint is the OTLP/HTTP collector endpoint, e.g.
	// "localhost:4318". Tracing is disabled when empty.
	TraceEndpoint string
	TraceInsecure bool
}

// Telemetry bundles the providers a running service needs. Metrics are read
// through a manual reader so the metrics endpoint can snapshot on demand
// without a push pipeline.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	reader         *sdkmetric.ManualReader
	tracer         trace.Tracer
	observer       *InvocationObserver
}

// Setup builds the telemetry stack. The returned Telemetry must be shut down
// when the service stops.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("otel: service name is required")
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	t := &Telemetry{
		meterProvider: meterProvider,
		reader:        reader,
		tracer:        noop.NewTracerProvider().Tracer(cfg.ServiceName),
	}

	if cfg.TraceEndpoint != "" {
		options := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.TraceEndpoint)}
		if cfg.TraceInsecure {
			options = append(options, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, options...)
		if err != nil {
			shutdownErr := meterProvider.Shutdown(ctx)
			return nil, errors.Join(err, shutdownErr)
		}
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		t.tracer = t.tracerProvider.Tracer(cfg.ServiceName)
	}

	observer, err := NewInvocationObserver(meterProvider.Meter(cfg.ServiceName), t.tracer)
	if err != nil {
		shutdownErr := t.Shutdown(ctx)
		return nil, errors.Join(err, shutdownErr)
	}
	t.observer = observer

	return t, nil
}

// Observer returns the invocation observer wired to this telemetry stack.
func (t *Telemetry) Observer() *InvocationObserver {
	if t == nil {
		return nil
	}
	return t.observer
}

// Snapshot collects current metric values into a JSON-friendly shape for the
// metrics endpoint.
func (t *Telemetry) Snapshot(ctx context.Context) (map[string]any, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	metrics := make(map[string]any)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = renderAggregation(m.Data)
		}
	}
	return map[string]any{
		"collected_at": time.Now().UTC().Format(time.RFC3339),
		"metrics":      metrics,
	}, nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func renderAggregation(data metricdata.Aggregation) any {
	switch agg := data.(type) {
	case metricdata.Sum[int64]:
		points := make([]map[string]any, len(agg.DataPoints))
		for i, dp := range agg.DataPoints {
			points[i] = map[string]any{
				"attributes": renderAttributes(dp.Attributes.ToSlice()),
				"value":      dp.Value,
			}
		}
		return points
	case metricdata.Sum[float64]:
		points := make([]map[string]any, len(agg.DataPoints))
		for i, dp := range agg.DataPoints {
			points[i] = map[string]any{
				"attributes": renderAttributes(dp.Attributes.ToSlice()),
				"value":      dp.Value,
			}
		}
		return points
	case metricdata.Histogram[float64]:
		points := make([]map[string]any, len(agg.DataPoints))
		for i, dp := range agg.DataPoints {
			points[i] = map[string]any{
				"attributes": renderAttributes(dp.Attributes.ToSlice()),
				"count":      dp.Count,
				"sum":        dp.Sum,
			}
		}
		return points
	default:
		return nil
	}
}

func renderAttributes(kvs []attribute.KeyValue) map[string]any {
	attrs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	return attrs
}

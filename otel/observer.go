// Package otel provides OpenTelemetry integration for tool invocations.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/spindrift-labs/statserve/tool"
)

// InvocationObserver records tool invocation signals into OpenTelemetry.
type InvocationObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewInvocationObserver creates an observer bound to the provided meter and
// tracer. The tracer may be nil when tracing is disabled.
func NewInvocationObserver(meter metric.Meter, tracer trace.Tracer) (*InvocationObserver, error) {
	invocations, err := meter.Int64Counter(
		"statserve.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"statserve.tool.failures",
		metric.WithDescription("Number of failed tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"statserve.tool.latency",
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InvocationObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// ObserveInvoke records one invocation result.
func (o *InvocationObserver) ObserveInvoke(observation tool.InvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.Tool),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, observation.Duration.Seconds(), options)
	if !observation.Success {
		o.failures.Add(ctx, 1, options)
	}

	if o.tracer == nil {
		return
	}
	spanAttrs := append(attrs, attribute.String("request_id", observation.RequestID))
	_, span := o.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(spanAttrs...))
	if observation.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, observation.ErrorKind)
	}
	span.End()
}

var _ tool.Observer = (*InvocationObserver)(nil)

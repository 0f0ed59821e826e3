package tool

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// InvokeObservation is the per-invocation signal handed to an Observer.
type InvokeObservation struct {
	Tool      string
	RequestID string
	Success   bool
	ErrorKind string
	Duration  time.Duration
}

// Observer receives one observation per completed invocation. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveInvoke(observation InvokeObservation)
}

// Event is the invocation lifecycle notice emitted to an EventSink. Events
// exist for observability streams; they carry no tool outputs.
type Event struct {
	Kind      string    `json:"kind"`
	Tool      string    `json:"tool"`
	RequestID string    `json:"request_id"`
	Time      time.Time `json:"time"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
}

// Invocation lifecycle event kinds.
const (
	EventInvocationStarted  = "invocation.started"
	EventInvocationFinished = "invocation.finished"
	EventInvocationFailed   = "invocation.failed"
)

// EventSink receives lifecycle events. It must not block; slow consumers are
// the sink's problem.
type EventSink func(Event)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Observer Observer
	Events   EventSink
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Dispatcher routes an operation name and raw arguments through validation,
// the registered handler, and the result codec. It holds no state beyond the
// static registry; every invocation is independent.
type Dispatcher struct {
	registry *Registry
	observer Observer
	events   EventSink
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewDispatcher wires a dispatcher over a populated registry.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		registry: registry,
		observer: cfg.Observer,
		events:   cfg.Events,
		logger:   logger,
		now:      now,
		newID:    newID,
	}
}

// Registry exposes the static registry for listing surfaces.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Invoke runs one tool call and returns its wire text. The state flow is
// Received -> Validated -> Computed -> Encoded, with early exit to an encoded
// failure from either middle state. No fault crosses this boundary as a raw
// error or panic: unknown tools, validation failures, handler errors, and
// unexpected internal faults all come back as encoded failure results.
func (d *Dispatcher) Invoke(ctx context.Context, name string, raw map[string]any) string {
	start := d.now()
	requestID := d.newID()

	d.emit(Event{
		Kind:      EventInvocationStarted,
		Tool:      name,
		RequestID: requestID,
		Time:      start,
	})

	reg, ok := d.registry.Get(name)
	if !ok {
		err := NewInvokeError(KindUnknownOperation, "unknown tool %q", name)
		return d.fail(name, requestID, start, err)
	}

	args, verr := Validate(reg.Schema, raw)
	if verr != nil {
		return d.fail(name, requestID, start, verr)
	}

	outputs, err := d.safeInvoke(ctx, reg, args)
	if err != nil {
		return d.fail(name, requestID, start, WrapError(err))
	}

	elapsed := d.now().Sub(start)
	d.observe(InvokeObservation{
		Tool:      name,
		RequestID: requestID,
		Success:   true,
		Duration:  elapsed,
	})
	d.emit(Event{
		Kind:      EventInvocationFinished,
		Tool:      name,
		RequestID: requestID,
		Time:      d.now(),
		ElapsedMS: elapsed.Milliseconds(),
	})
	d.logger.Debug("tool invocation finished",
		"tool", name, "request_id", requestID, "elapsed_ms", elapsed.Milliseconds())

	return Encode(Success(outputs), Meta{
		RequestID:   requestID,
		CompletedAt: d.now(),
		Duration:    elapsed,
	})
}

// safeInvoke runs the handler with a panic barrier. A panicking handler is an
// unanticipated internal defect; it is reported as a generic failure, never
// re-raised.
func (d *Dispatcher) safeInvoke(ctx context.Context, reg Registration, args map[string]any) (outputs map[string]any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = NewInvokeError(KindToolFailed, "Tool failed: %v", recovered)
		}
	}()
	return reg.Handler(ctx, args)
}

func (d *Dispatcher) fail(name, requestID string, start time.Time, err *InvokeError) string {
	elapsed := d.now().Sub(start)
	d.observe(InvokeObservation{
		Tool:      name,
		RequestID: requestID,
		Success:   false,
		ErrorKind: err.Kind,
		Duration:  elapsed,
	})
	d.emit(Event{
		Kind:      EventInvocationFailed,
		Tool:      name,
		RequestID: requestID,
		Time:      d.now(),
		ElapsedMS: elapsed.Milliseconds(),
		ErrorKind: err.Kind,
	})
	d.logger.Warn("tool invocation failed",
		"tool", name, "request_id", requestID, "kind", err.Kind, "error", err.Error())
	return Encode(Failure(err), Meta{RequestID: requestID, CompletedAt: d.now(), Duration: elapsed})
}

func (d *Dispatcher) observe(observation InvokeObservation) {
	if d.observer != nil {
		d.observer.ObserveInvoke(observation)
	}
}

func (d *Dispatcher) emit(event Event) {
	if d.events != nil {
		d.events(event)
	}
}

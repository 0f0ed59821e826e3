package otel_test

import (
	"context"
	"testing"
	"time"

	statotel "github.com/spindrift-labs/statserve/otel"
	"github.com/spindrift-labs/statserve/tool"
)

func TestSetupWithoutTracing(t *testing.T) {
	ctx := context.Background()
	telemetry, err := statotel.Setup(ctx, statotel.Config{
		ServiceName:    "statserve-test",
		ServiceVersion: "0.0.0",
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer telemetry.Shutdown(ctx)

	observer := telemetry.Observer()
	if observer == nil {
		t.Fatal("Observer() = nil")
	}
	observer.ObserveInvoke(tool.InvokeObservation{
		Tool:     "describe",
		Success:  true,
		Duration: 10 * time.Millisecond,
	})

	snapshot, err := telemetry.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	metrics, ok := snapshot["metrics"].(map[string]any)
	if !ok {
		t.Fatalf("snapshot[metrics] = %T", snapshot["metrics"])
	}
	if _, ok := metrics["statserve.tool.invocations"]; !ok {
		t.Fatalf("snapshot missing invocation counter, got %v", metrics)
	}
	if _, ok := snapshot["collected_at"]; !ok {
		t.Fatal("snapshot missing collected_at")
	}
}

func TestSetupRequiresServiceName(t *testing.T) {
	if _, err := statotel.Setup(context.Background(), statotel.Config{}); err == nil {
		t.Fatal("Setup accepted empty service name")
	}
}

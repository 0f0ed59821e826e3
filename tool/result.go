package tool

import (
	"encoding/json"
	"fmt"
	"time"
)

// Result is the tagged outcome of one tool invocation: either an outputs map
// or a failure. Every invocation produces exactly one Result, serialized to
// wire text before it leaves the dispatcher; a raw Go error never crosses
// that boundary.
type Result struct {
	Outputs map[string]any
	Err     error
}

// Success wraps a handler payload.
func Success(outputs map[string]any) Result {
	return Result{Outputs: outputs}
}

// Failure wraps an invocation error.
func Failure(err error) Result {
	return Result{Err: err}
}

// Meta is the fixed metadata block merged into every success payload.
type Meta struct {
	RequestID   string
	CompletedAt time.Time
	Duration    time.Duration
}

// Reserved metadata keys stamped onto success payloads.
const (
	metaCompletedAt = "completed_at"
	metaRequestID   = "request_id"
	metaDurationMS  = "duration_ms"
)

// Encode serializes a Result to its wire text. Success payloads are merged
// with the metadata block (ISO-8601 UTC completion timestamp, request id,
// duration). Failures become {"error": "<KIND>: <message>"}.
//
// Encode never fails: a payload that cannot be serialized is replaced by a
// generic failure rather than propagating a fault to the hosting runtime.
func Encode(res Result, meta Meta) string {
	if res.Err != nil {
		return encodeFailure(WrapError(res.Err).Error())
	}

	merged := make(map[string]any, len(res.Outputs)+3)
	for key, value := range res.Outputs {
		merged[key] = value
	}
	merged[metaCompletedAt] = meta.CompletedAt.UTC().Format(time.RFC3339)
	if meta.RequestID != "" {
		merged[metaRequestID] = meta.RequestID
	}
	merged[metaDurationMS] = meta.Duration.Milliseconds()

	data, err := json.Marshal(merged)
	if err != nil {
		return encodeFailure(fmt.Sprintf("%s: result payload is not serializable: %v",
			KindEncodingFailure, err))
	}
	return string(data)
}

func encodeFailure(message string) string {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		// A map[string]string cannot fail to marshal; this guards the
		// boundary regardless.
		return `{"error":"` + KindEncodingFailure + `: failed to encode failure"}`
	}
	return string(data)
}

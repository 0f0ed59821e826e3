package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/spindrift-labs/statserve/tool"
)

// handleHealth returns a simple liveness response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the service dependencies are usable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics renders a point-in-time metrics snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "METRICS_DISABLED", "metrics collection is not enabled")
		return
	}
	snapshot, err := s.metrics.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "METRICS_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// toolDescriptor is the list-endpoint view of a registration.
type toolDescriptor struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Params      []tool.Param `json:"params"`
}

// handleListTools returns the registered tool surface, name-sorted.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	registrations := s.dispatcher.Registry().List()
	descriptors := make([]toolDescriptor, len(registrations))
	for i, reg := range registrations {
		descriptors[i] = toolDescriptor{
			Name:        reg.Name,
			Description: reg.Description,
			Params:      reg.Schema.Params,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": descriptors})
}

// handleInvoke runs one tool call. The response body is the dispatcher's
// wire text verbatim; invocation failures are encoded inside it, so the
// HTTP status stays 200 for anything that reached the dispatcher.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOOL", "tool name is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if isMaxBytesError(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "READ_ERROR", err.Error())
		return
	}

	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeError(w, http.StatusBadRequest, "PARSE_ERROR", "request body must be a JSON object")
			return
		}
	}

	wire := s.dispatcher.Invoke(r.Context(), name, args)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, wire)
}

func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/engine"
	"github.com/t77yq/pulse/internal/jobs"
	"github.com/t77yq/pulse/internal/monitor"
	"github.com/t77yq/pulse/internal/service"
	"github.com/t77yq/pulse/internal/storage"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Detail string `json:"detail"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, engine.ErrInvalidTaskSet),
		errors.Is(err, monitor.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrProjectNotFound), errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, monitor.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrRunnerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError writes err with the status it maps to. Server errors are logged
// and prefixed with context so internals are not the whole message.
func (h *Handler) writeError(w http.ResponseWriter, err error, context string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("context", context), zap.Error(err))
		writeDetail(w, status, context+": "+err.Error())
		return
	}
	if errors.Is(err, storage.ErrProjectNotFound) {
		writeDetail(w, status, "Project not found")
		return
	}
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeDetail(w, status, "Job not found")
		return
	}
	if errors.Is(err, monitor.ErrRuleNotFound) {
		writeDetail(w, status, "Alert rule not found")
		return
	}
	writeDetail(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &service.RequestError{Message: "Invalid JSON body: " + err.Error()}
	}
	return nil
}

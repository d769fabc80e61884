package web

// errors.go provides unified error responses for the API.
//
// Handlers call respondError with whatever the core returned; the status
// code comes from the error's type (NotFound, Validation, StoreUnavailable)
// and the body from core.MapError, so clients always receive the same
// shape: {error, message, action, code}. The technical error is logged
// server-side with the request id for correlation.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pcharron/accountvet/internal/core"
	"github.com/pcharron/accountvet/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError maps err to an HTTP status and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeErrorBody(w, status, userMsg)
}

// respondErrorStatus writes an error response with an explicit status, for
// failures that never reach the core (bad URL params, rate limiting).
func respondErrorStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"reason", message,
	)
	writeErrorBody(w, status, core.MapError(errors.New(message)))
}

func statusFor(err error) int {
	switch {
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusBadRequest
	default:
		var unavailable core.StoreUnavailableError
		if errors.As(err, &unavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func writeErrorBody(w http.ResponseWriter, status int, msg core.UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON. Encoding failures are logged; headers are
// already sent at that point.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode failed", "error", err)
	}
}

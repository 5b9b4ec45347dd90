package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
)

type ErrorResponse struct {
	Error string      `json:"error"`
	Code  engerr.Code `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

// writeEngineError maps an engine error code onto an HTTP status
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := engerr.GetCode(err)
	status := StatusForCode(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", code)
		if code != engerr.CodeInvariant {
			message = "Internal server error"
		}
	}
	writeJSON(w, logger, status, ErrorResponse{Error: message, Code: code})
}

// StatusForCode is the HTTP status for an engine error or rejection code
func StatusForCode(code engerr.Code) int {
	switch code {
	case engerr.CodeUser:
		return http.StatusBadRequest
	case engerr.CodeValidation:
		return http.StatusUnprocessableEntity
	case engerr.CodeNotFound:
		return http.StatusNotFound
	case engerr.CodeBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, logger *slog.Logger, r *http.Request, allowed string) {
	logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func parseSessionID(w http.ResponseWriter, logger *slog.Logger, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid session ID", "id", raw, "error", err)
		writeError(w, logger, http.StatusBadRequest, "Invalid session ID format")
		return uuid.Nil, false
	}
	return id, true
}

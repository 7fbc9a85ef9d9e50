package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/monitor"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrParentNotFound), errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateID), errors.Is(err, monitor.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidKind), errors.Is(err, domain.ErrInvalidNode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, monitor.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, message, details string, statusCode int) {
	writeJSON(w, logger, ErrorResponse{Error: message, Details: details}, statusCode)
}

// writeDomainError replies with the status matching err. Server-side
// failures are logged; caller mistakes are not.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, message string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	}
	writeError(w, logger, message, err.Error(), code)
}

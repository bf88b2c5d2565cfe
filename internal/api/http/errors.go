package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tokenshop-backend/internal/domain"
	"tokenshop-backend/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Required  *int64 `json:"required,omitempty"`
	Available *int64 `json:"available,omitempty"`
	Shortfall *int64 `json:"shortfall,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ibe *domain.InsufficientBalanceError
	switch {
	case errors.As(err, &ibe):
		shortfall := ibe.Shortfall()
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     domain.ErrInsufficientBalance.Error(),
			Required:  &ibe.Required,
			Available: &ibe.Available,
			Shortfall: &shortfall,
		})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case domain.IsValidationError(err), errors.Is(err, domain.ErrDuplicateSubmission), errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAuthenticationRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrExternalService):
		logger.Error("External service failure", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: domain.ErrExternalService.Error()})
	default:
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/longregen/cogito/internal/adapters/http/encoding"
	"github.com/longregen/cogito/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	encoding.Write(w, r, status, data)
}

func respondError(w http.ResponseWriter, r *http.Request, errorType, message string, status int) {
	encoding.Write(w, r, status, errorResponse{Error: errorType, Message: message, Status: status})
}

// respondDomainError maps domain sentinels to HTTP statuses.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidID):
		respondError(w, r, "invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrMemoryNotFound),
		errors.Is(err, domain.ErrToolNotFound):
		respondError(w, r, "not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, r, "rate_limited", err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrBackendUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrVerifierUnavailable):
		respondError(w, r, "unavailable", err.Error(), http.StatusServiceUnavailable)
	default:
		respondError(w, r, "internal_error", err.Error(), http.StatusInternalServerError)
	}
}

func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// urlParam returns a required chi URL parameter, writing a 400 when missing.
func urlParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if value == "" {
		respondError(w, r, "invalid_request", name+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// decodeBody decodes the request body in its declared format, writing a 400
// on malformed input.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := encoding.Read(w, r, &req); err != nil {
		respondError(w, r, "invalid_request", "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

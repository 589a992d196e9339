package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

const (
	errCodeBadRequest      = "BAD_REQUEST"
	errCodeNotFound        = "NOT_FOUND"
	errCodeDataUnavailable = "DATA_UNAVAILABLE"
	errCodeTransport       = "TRANSPORT_FAILURE"
	errCodeRateLimited     = "RATE_LIMITED"
	errCodeInternal        = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps core errors onto status codes. An artifact that is
// missing at its source is a DataUnavailable error, so that check comes first.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		h.log.Error("rest: data unavailable", "path", r.URL.Path, "error", err)
		writeErrorWithCode(w, http.StatusServiceUnavailable, "track data is unavailable", errCodeDataUnavailable)
	case errors.Is(err, domain.ErrTransportFailure):
		h.log.Error("rest: transport failure", "path", r.URL.Path, "error", err)
		writeErrorWithCode(w, http.StatusBadGateway, "failed to fetch track data", errCodeTransport)
	case errors.Is(err, domain.ErrNotFound):
		writeErrorWithCode(w, http.StatusNotFound, err.Error(), errCodeNotFound)
	default:
		h.log.Error("rest: request failed", "path", r.URL.Path, "error", err)
		writeErrorWithCode(w, http.StatusInternalServerError, "internal error", errCodeInternal)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/drivetune/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusFor maps a pipeline error to the HTTP status reported to clients.
func StatusFor(err error) int {
	var upstream *shared.UpstreamError
	switch {
	case errors.Is(err, shared.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthUnavailable),
		errors.Is(err, shared.ErrUpstreamAuthFailed),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &upstream):
		if upstream.Status >= http.StatusBadRequest && upstream.Status < 600 {
			return upstream.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

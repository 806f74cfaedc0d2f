package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hszk-dev/audiostream/internal/usecase"
)

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id,omitempty"`
}

func Error(w http.ResponseWriter, status int, err string, message string) {
	JSON(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

// resolveError writes the caller-facing form of a pipeline failure.
// Internal details stay in the log.
func resolveError(w http.ResponseWriter, id string, err error) {
	resp := ErrorResponse{ID: id, Error: string(usecase.KindOf(err))}
	var status int

	switch {
	case errors.Is(err, usecase.ErrInvalidIdentifier):
		status = http.StatusBadRequest
		resp.Message = "Identifier must be 11 characters of letters, digits, '-' or '_'"
	case errors.Is(err, usecase.ErrNotFound):
		status = http.StatusNotFound
		resp.Message = "Media not found upstream"
	case errors.Is(err, usecase.ErrNoPlayableAsset):
		status = http.StatusUnprocessableEntity
		resp.Message = "No playable audio stream is available for this media"
	case errors.Is(err, usecase.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
		resp.Message = "Upstream could not be reached after all retries and fallbacks; it may be blocking this server's network"
	default:
		status = http.StatusInternalServerError
		resp.Error = string(usecase.KindInternal)
		resp.Message = "An unexpected error occurred"
	}

	attempt := 0
	var re *usecase.ResolveError
	if errors.As(err, &re) {
		attempt = re.Attempt
	}
	if status >= http.StatusInternalServerError {
		slog.Error("resolution failed", "id", id, "attempt", attempt, "kind", resp.Error, "error", err)
	} else {
		slog.Info("resolution rejected", "id", id, "attempt", attempt, "kind", resp.Error, "error", err)
	}
	JSON(w, status, resp)
}

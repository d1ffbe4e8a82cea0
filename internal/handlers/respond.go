package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adreel/backend/internal/logging"
	"github.com/adreel/backend/internal/videos"
)

const (
	messageSuccess          = "Success"
	messageError            = "Error"
	messageMethodNotAllowed = "Method not allowed"
)

// envelope is the body of every API response.
type envelope struct {
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondSuccess(ctx context.Context, w http.ResponseWriter, result any) {
	respondJSON(ctx, w, http.StatusOK, envelope{Message: messageSuccess, Result: result})
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	respondJSON(ctx, w, statusFor(err), envelope{Message: messageError, Error: err.Error()})
}

func respondMethodNotAllowed(ctx context.Context, w http.ResponseWriter, allowed ...string) {
	for _, method := range allowed {
		w.Header().Add("Allow", method)
	}
	respondJSON(ctx, w, http.StatusMethodNotAllowed, envelope{Message: messageMethodNotAllowed})
}

// statusFor maps an error's kind to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch videos.KindOf(err) {
	case videos.KindNotFound:
		return http.StatusNotFound
	case videos.KindValidation:
		return http.StatusUnprocessableEntity
	case videos.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

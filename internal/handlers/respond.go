// Package handlers serves the JSON API the browser front end calls.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/assistant"
	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/middleware"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
	"github.com/BogateyDi/ai-service-frontend/internal/session"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

// invalidCredentialMessage replaces the backend's text when its API key is
// rejected; the raw message names server configuration.
const invalidCredentialMessage = "the generation service is misconfigured, please try again later"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a domain error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	var berr *backend.Error
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, ledger.ErrStorageLimitExceeded):
		return http.StatusInsufficientStorage, "storage limit exceeded: clear your history to free space"
	case errors.Is(err, accounts.ErrNotLoggedIn):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, assistant.ErrNotOwned):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, accounts.ErrUnknownCode),
		errors.Is(err, accounts.ErrFavoriteNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, flow.ErrUnknownFlow):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, flow.ErrInvalidTransition),
		errors.Is(err, accounts.ErrAssistantOwned),
		errors.Is(err, accounts.ErrDuplicateFavorite),
		errors.Is(err, accounts.ErrFavoritesFull):
		return http.StatusConflict, err.Error()
	case errors.Is(err, flow.ErrInvalidInput),
		errors.Is(err, flow.ErrUnknownAction),
		errors.Is(err, accounts.ErrUnknownPackage),
		errors.Is(err, accounts.ErrUnknownAssistant),
		errors.Is(err, accounts.ErrUnknownSetting),
		errors.Is(err, accounts.ErrUnknownHistory),
		errors.Is(err, accounts.ErrInvalidStorageLimit),
		errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, backend.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "generation quota exceeded, please try again later"
	case errors.Is(err, backend.ErrInvalidCredential):
		return http.StatusBadGateway, invalidCredentialMessage
	case errors.As(err, &berr):
		return http.StatusBadGateway, berr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the generation service did not answer in time"
	}
	return http.StatusInternalServerError, "internal error"
}

// errorBody builds the JSON error object. A balance shortfall carries both
// counts so the client can offer a top-up.
func errorBody(err error) (int, map[string]any) {
	status, msg := errorStatus(err)
	body := map[string]any{"error": msg}
	var ib *ledger.InsufficientBalanceError
	if errors.As(err, &ib) {
		body["required"] = ib.Required
		body["available"] = ib.Available
	}
	return status, body
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError && status != http.StatusInsufficientStorage {
		log.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func assistantError(a models.Assistant) error {
	return fmt.Errorf("%w: %q", accounts.ErrUnknownAssistant, a)
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// deviceSession returns the authenticated device and its session. Both are
// set by middleware.DeviceAuth.
func deviceSession(w http.ResponseWriter, r *http.Request) (string, *session.Session, bool) {
	device := middleware.DeviceFromCtx(r.Context())
	s := middleware.SessionFromCtx(r.Context())
	if device == "" || s == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return "", nil, false
	}
	return device, s, true
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

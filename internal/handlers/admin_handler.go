package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// AdminHandler serves the admin panel. Routes are wrapped in
// middleware.AdminOnly.
type AdminHandler struct {
	Accounts *accounts.Service
	Logger   *slog.Logger
}

func NewAdminHandler(svc *accounts.Service, log *slog.Logger) *AdminHandler {
	return &AdminHandler{Accounts: svc, Logger: orDefault(log)}
}

// --- GET /api/v1/admin/accounts?q=&sort=&dir= ---

func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	desc := strings.EqualFold(q.Get("dir"), "desc")
	list := h.Accounts.ListAccounts(q.Get("q"), q.Get("sort"), desc)
	if list == nil {
		list = []accounts.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- GET /api/v1/admin/stats ---

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Accounts.Stats())
}

// --- PATCH /api/v1/admin/accounts/{code} ---

type updateAccountRequest struct {
	GenerationsDelta *int             `json:"generations_delta,omitempty"`
	StorageLimitMB   *int             `json:"storage_limit_mb,omitempty"`
	ToggleAssistant  models.Assistant `json:"toggle_assistant,omitempty"`
}

// UpdateAccount applies every change present in the body, in field order.
func (h *AdminHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	var req updateAccountRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.GenerationsDelta == nil && req.StorageLimitMB == nil && req.ToggleAssistant == "" {
		http.Error(w, `{"error":"nothing to update"}`, http.StatusBadRequest)
		return
	}

	var (
		acc *models.Account
		err error
	)
	if req.GenerationsDelta != nil {
		if acc, err = h.Accounts.AdjustGenerations(r.Context(), code, *req.GenerationsDelta); err != nil {
			writeError(w, h.Logger, err)
			return
		}
	}
	if req.StorageLimitMB != nil {
		if acc, err = h.Accounts.SetStorageLimit(r.Context(), code, *req.StorageLimitMB); err != nil {
			writeError(w, h.Logger, err)
			return
		}
	}
	if req.ToggleAssistant != "" {
		if acc, err = h.Accounts.ToggleAssistantAccess(r.Context(), code, req.ToggleAssistant); err != nil {
			writeError(w, h.Logger, err)
			return
		}
	}
	h.Logger.Info("account updated by admin", "code", code)
	writeJSON(w, http.StatusOK, accounts.Summarize(code, acc))
}

// --- DELETE /api/v1/admin/accounts/{code} ---

func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	if err := h.Accounts.DeleteAccount(r.Context(), code); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

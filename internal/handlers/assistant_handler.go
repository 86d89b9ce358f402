package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BogateyDi/ai-service-frontend/internal/assistant"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Assistants is what the chat endpoints need from the assistant service.
type Assistants interface {
	Send(ctx context.Context, device string, asst models.Assistant, msg assistant.Message) (*assistant.Exchange, error)
	Share(ctx context.Context, device string, asst models.Assistant, docType models.DocumentType, text string) (*assistant.Exchange, error)
	ReferralLink(ctx context.Context, device string) (*assistant.Exchange, error)
}

type AssistantHandler struct {
	Assistants Assistants
	Logger     *slog.Logger
}

func NewAssistantHandler(svc Assistants, log *slog.Logger) *AssistantHandler {
	return &AssistantHandler{Assistants: svc, Logger: orDefault(log)}
}

// --- POST /api/v1/assistants/{assistant}/messages ---

type messageRequest struct {
	Text               string `json:"text"`
	SharedGenerationID string `json:"shared_generation_id,omitempty"`
}

func (h *AssistantHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	asst := models.Assistant(r.PathValue("assistant"))
	if !asst.Valid() {
		writeError(w, h.Logger, assistantError(asst))
		return
	}
	s.SetActiveAssistant(asst)

	ex, err := h.Assistants.Send(r.Context(), device, asst, assistant.Message{Text: req.Text, SharedGenerationID: req.SharedGenerationID})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if ex.AdminUnlocked {
		s.SetAdminMode(true)
	}
	writeJSON(w, http.StatusOK, ex)
}

// --- POST /api/v1/assistants/{assistant}/share ---

type shareRequest struct {
	DocType models.DocumentType `json:"doc_type"`
	Text    string              `json:"text"`
}

func (h *AssistantHandler) Share(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req shareRequest
	if !decodeJSON(r, &req) || req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	asst := models.Assistant(r.PathValue("assistant"))
	if !asst.Valid() {
		writeError(w, h.Logger, assistantError(asst))
		return
	}
	s.SetActiveAssistant(asst)

	ex, err := h.Assistants.Share(r.Context(), device, asst, req.DocType, req.Text)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// --- POST /api/v1/assistants/mirra/referral-link ---

func (h *AssistantHandler) ReferralLink(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	s.SetActiveAssistant(models.Mirra)
	ex, err := h.Assistants.ReferralLink(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type DeviceResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// RegisterDevice issues a token for a new device.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	id, tok, err := h.svc.IssueDevice()
	if err != nil {
		h.log.Error("issue device token", "error", err)
		http.Error(w, `{"error":"could not issue device token"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(DeviceResponse{DeviceID: id, Token: tok})
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// maxUpload bounds a flow action body including attached files.
const maxUpload = 32 << 20

// CurrentAccount resolves the logged-in account code of a device.
type CurrentAccount interface {
	Current(ctx context.Context, device string) (string, *models.Account, error)
}

// FlowHandler drives the generation wizards of the caller's session.
type FlowHandler struct {
	Accounts CurrentAccount
	Env      *flow.Env
	Logger   *slog.Logger
}

func NewFlowHandler(accounts CurrentAccount, env *flow.Env, log *slog.Logger) *FlowHandler {
	return &FlowHandler{Accounts: accounts, Env: env, Logger: orDefault(log)}
}

// writeFlowError sends the mapped error together with the flow view so the
// client can show the step the flow is left on.
func (h *FlowHandler) writeFlowError(w http.ResponseWriter, err error, view flow.View) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError && status != http.StatusInsufficientStorage {
		h.Logger.Error("flow action failed", "flow", view.Flow, "step", view.Step, "error", err)
	}
	if view.Flow != "" {
		body["flow"] = view
	}
	writeJSON(w, status, body)
}

// --- GET /api/v1/flow ---

func (h *FlowHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	_, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	view, active := s.Flows.Active()
	if !active {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- DELETE /api/v1/flow ---

func (h *FlowHandler) Reset(w http.ResponseWriter, r *http.Request) {
	_, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	s.Flows.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- POST /api/v1/flows/{flow}/start ---

type startRequest struct {
	DocType models.DocumentType `json:"doc_type"`
}

func (h *FlowHandler) Start(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	c := flow.Call{Device: device, Code: code}
	view, err := s.Flows.Start(r.Context(), h.Env, c, flow.Name(r.PathValue("flow")), req.DocType)
	if err != nil {
		h.writeFlowError(w, err, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- POST /api/v1/flows/{flow}/{action} ---

// Act runs one action. The body is JSON, or multipart/form-data with the
// JSON in the "payload" field and uploads in "files".
func (h *FlowHandler) Act(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	body, files, err := readActionBody(w, r)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	c := flow.Call{Device: device, Code: code, Body: body, Files: files}
	view, err := s.Flows.Act(r.Context(), h.Env, c, flow.Name(r.PathValue("flow")), r.PathValue("action"))
	if err != nil {
		h.writeFlowError(w, err, view)
		return
	}
	status := http.StatusOK
	if view.Phase == flow.PhaseGenerating {
		status = http.StatusAccepted
	}
	writeJSON(w, status, view)
}

// --- POST /api/v1/generate ---

type generateRequest struct {
	DocType models.DocumentType `json:"doc_type"`
	Topic   string              `json:"topic"`
	Age     int                 `json:"age"`
}

// Generate is the one-call form of the standard flow: start and submit.
func (h *FlowHandler) Generate(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if !models.IsStandardDocType(req.DocType) {
		http.Error(w, `{"error":"doc_type is not a standard document type"}`, http.StatusBadRequest)
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	c := flow.Call{Device: device, Code: code}
	view, err := s.Flows.Start(r.Context(), h.Env, c, flow.Standard, req.DocType)
	if err != nil {
		h.writeFlowError(w, err, view)
		return
	}
	c.Body, _ = json.Marshal(map[string]any{"topic": req.Topic, "age": req.Age})
	view, err = s.Flows.Act(r.Context(), h.Env, c, flow.Standard, flow.ActionSubmit)
	if err != nil {
		h.writeFlowError(w, err, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func readActionBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, []backend.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("read body: %w", err)
		}
		return raw, nil, nil
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	body := json.RawMessage(strings.TrimSpace(r.FormValue("payload")))
	var files []backend.File
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, backend.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return body, files, nil
}

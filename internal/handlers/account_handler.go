package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// AccountHandler serves purchases, login state, favorites, settings and
// history.
type AccountHandler struct {
	Accounts *accounts.Service
	Logger   *slog.Logger
}

func NewAccountHandler(svc *accounts.Service, log *slog.Logger) *AccountHandler {
	return &AccountHandler{Accounts: svc, Logger: orDefault(log)}
}

// AccountView is the logged-in account as the front end shows it.
type AccountView struct {
	LoggedIn       bool                     `json:"logged_in"`
	AdminMode      bool                     `json:"admin_mode"`
	Code           string                   `json:"code,omitempty"`
	Generations    int                      `json:"generations"`
	Favorites      []models.FavoriteService `json:"favorites"`
	HasMirra       bool                     `json:"has_mirra"`
	HasDary        bool                     `json:"has_dary"`
	MirraSettings  models.AssistantSettings `json:"mirra_settings"`
	DarySettings   models.AssistantSettings `json:"dary_settings"`
	DataSize       int                      `json:"data_size"`
	MaxStorageSize int                      `json:"max_storage_size"`
}

func accountView(code string, a *models.Account) AccountView {
	return AccountView{
		LoggedIn:       true,
		Code:           code,
		Generations:    a.Generations,
		Favorites:      a.FavoriteServices,
		HasMirra:       a.HasMirra,
		HasDary:        a.HasDary,
		MirraSettings:  a.MirraSettings,
		DarySettings:   a.DarySettings,
		DataSize:       a.SerializedSize(),
		MaxStorageSize: a.MaxStorageSize,
	}
}

// --- GET /api/v1/packages ---

func (h *AccountHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"packages":              models.Packages,
		"assistant_generations": models.AssistantPurchaseGenerations,
	})
}

// --- POST /api/v1/referral ---

type referralRequest struct {
	Ref string `json:"ref"`
}

// CaptureReferral stores the ?ref= code the device arrived with. Invalid
// codes are ignored.
func (h *AccountHandler) CaptureReferral(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req referralRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	captured := h.Accounts.CaptureReferral(r.Context(), device, req.Ref)
	writeJSON(w, http.StatusOK, map[string]bool{"captured": captured})
}

// --- POST /api/v1/purchase ---

type purchaseRequest struct {
	Package string `json:"package"`
}

func (h *AccountHandler) PurchasePackage(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Accounts.PurchasePackage(r.Context(), device, req.Package)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info("package purchased", "code", res.Code, "package", req.Package, "created", res.Created)
	writeJSON(w, purchaseStatus(res), res)
}

// --- POST /api/v1/assistants/{assistant}/purchase ---

func (h *AccountHandler) PurchaseAssistant(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	asst := models.Assistant(r.PathValue("assistant"))
	res, err := h.Accounts.PurchaseAssistant(r.Context(), device, asst)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info("assistant purchased", "code", res.Code, "assistant", asst, "created", res.Created)
	writeJSON(w, purchaseStatus(res), res)
}

func purchaseStatus(res *accounts.PurchaseResult) int {
	if res.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// --- POST /api/v1/auth/login ---

type loginRequest struct {
	Code string `json:"code"`
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req loginRequest
	if !decodeJSON(r, &req) || req.Code == "" {
		http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
		return
	}
	code, acc, err := h.Accounts.Login(r.Context(), device, req.Code)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s.Flows.Reset()
	view := accountView(code, acc)
	view.AdminMode = s.AdminMode()
	writeJSON(w, http.StatusOK, view)
}

// --- POST /api/v1/auth/logout ---

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	h.Accounts.Logout(r.Context(), device)
	s.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// --- GET /api/v1/account ---

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	device, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	code, acc, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeJSON(w, http.StatusOK, AccountView{AdminMode: s.AdminMode(), Favorites: []models.FavoriteService{}})
		return
	}
	view := accountView(code, acc)
	view.AdminMode = s.AdminMode()
	writeJSON(w, http.StatusOK, view)
}

// --- GET /api/v1/history ---

type historyResponse struct {
	Generations []models.GenerationRecord `json:"generations"`
	Mirra       []models.ChatMessage      `json:"mirra"`
	Dary        []models.ChatMessage      `json:"dary"`
}

func (h *AccountHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	_, acc, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Generations: acc.GenerationHistory,
		Mirra:       acc.MirraChatHistory,
		Dary:        acc.DaryChatHistory,
	})
}

// --- DELETE /api/v1/history/{target} ---

func (h *AccountHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	acc, err := h.Accounts.ClearHistory(r.Context(), code, r.PathValue("target"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(code, acc))
}

// --- GET /api/v1/ledger ---

func (h *AccountHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.Accounts.LedgerEntries(r.Context(), code, limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- POST/DELETE /api/v1/favorites ---

type favoriteRequest struct {
	DocType models.DocumentType `json:"doc_type"`
	Age     *int                `json:"age,omitempty"`
}

func (h *AccountHandler) favorite(w http.ResponseWriter, r *http.Request) (string, models.FavoriteService, bool) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return "", models.FavoriteService{}, false
	}
	var req favoriteRequest
	if !decodeJSON(r, &req) || req.DocType == "" {
		http.Error(w, `{"error":"doc_type is required"}`, http.StatusBadRequest)
		return "", models.FavoriteService{}, false
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return "", models.FavoriteService{}, false
	}
	return code, models.FavoriteService{DocType: req.DocType, Age: req.Age}, true
}

func (h *AccountHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	code, fav, ok := h.favorite(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.AddFavorite(r.Context(), code, fav)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc.FavoriteServices)
}

func (h *AccountHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	code, fav, ok := h.favorite(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.RemoveFavorite(r.Context(), code, fav)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, acc.FavoriteServices)
}

// --- POST /api/v1/favorites/open ---

type openFavoriteResponse struct {
	Flow    string              `json:"flow,omitempty"`
	DocType models.DocumentType `json:"doc_type"`
	Age     *int                `json:"age,omitempty"`
}

// OpenFavorite resets every flow and tells the client where the favorite
// leads.
func (h *AccountHandler) OpenFavorite(w http.ResponseWriter, r *http.Request) {
	_, s, ok := deviceSession(w, r)
	if !ok {
		return
	}
	code, fav, ok := h.favorite(w, r)
	if !ok {
		return
	}
	acc, found := h.Accounts.Get(code)
	if !found {
		writeError(w, h.Logger, accounts.ErrNotLoggedIn)
		return
	}
	known := false
	for _, f := range acc.FavoriteServices {
		if f.Equal(fav) {
			known = true
			break
		}
	}
	if !known {
		writeError(w, h.Logger, accounts.ErrFavoriteNotFound)
		return
	}
	s.Flows.Reset()
	name, _ := s.Flows.FlowFor(fav.DocType)
	writeJSON(w, http.StatusOK, openFavoriteResponse{Flow: string(name), DocType: fav.DocType, Age: fav.Age})
}

// --- PATCH /api/v1/assistants/{assistant}/settings ---

type settingRequest struct {
	Setting string `json:"setting"`
}

func (h *AccountHandler) ToggleSetting(w http.ResponseWriter, r *http.Request) {
	device, _, ok := deviceSession(w, r)
	if !ok {
		return
	}
	var req settingRequest
	if !decodeJSON(r, &req) {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	code, _, err := h.Accounts.Current(r.Context(), device)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	settings, err := h.Accounts.ToggleSetting(r.Context(), code, models.Assistant(r.PathValue("assistant")), req.Setting)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

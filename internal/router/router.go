package router

import (
	"net/http"

	"github.com/BogateyDi/ai-service-frontend/internal/auth"
	"github.com/BogateyDi/ai-service-frontend/internal/handlers"
	"github.com/BogateyDi/ai-service-frontend/internal/middleware"
)

// Handlers groups everything the API routes to.
type Handlers struct {
	Auth      *auth.Handler
	Accounts  *handlers.AccountHandler
	Flows     *handlers.FlowHandler
	Assistant *handlers.AssistantHandler
	Admin     *handlers.AdminHandler
}

// New returns an http.Handler that serves the API under /api/v1. Every route
// except device registration and the package list needs a device token.
func New(h Handlers, tokens middleware.TokenValidator, sessions middleware.SessionSource) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"
	device := middleware.DeviceAuth(tokens, sessions)
	authed := func(f http.HandlerFunc) http.Handler { return device(f) }
	admin := func(f http.HandlerFunc) http.Handler { return device(middleware.AdminOnly(f)) }

	mux.HandleFunc("POST "+base+"/devices", h.Auth.RegisterDevice)
	mux.HandleFunc("GET "+base+"/packages", h.Accounts.ListPackages)

	mux.Handle("POST "+base+"/referral", authed(h.Accounts.CaptureReferral))
	mux.Handle("POST "+base+"/purchase", authed(h.Accounts.PurchasePackage))
	mux.Handle("POST "+base+"/assistants/{assistant}/purchase", authed(h.Accounts.PurchaseAssistant))
	mux.Handle("POST "+base+"/auth/login", authed(h.Accounts.Login))
	mux.Handle("POST "+base+"/auth/logout", authed(h.Accounts.Logout))
	mux.Handle("GET "+base+"/account", authed(h.Accounts.GetAccount))
	mux.Handle("GET "+base+"/history", authed(h.Accounts.GetHistory))
	mux.Handle("DELETE "+base+"/history/{target}", authed(h.Accounts.ClearHistory))
	mux.Handle("GET "+base+"/ledger", authed(h.Accounts.ListLedger))
	mux.Handle("POST "+base+"/favorites", authed(h.Accounts.AddFavorite))
	mux.Handle("DELETE "+base+"/favorites", authed(h.Accounts.RemoveFavorite))
	mux.Handle("POST "+base+"/favorites/open", authed(h.Accounts.OpenFavorite))
	mux.Handle("PATCH "+base+"/assistants/{assistant}/settings", authed(h.Accounts.ToggleSetting))

	mux.Handle("POST "+base+"/assistants/{assistant}/messages", authed(h.Assistant.SendMessage))
	mux.Handle("POST "+base+"/assistants/{assistant}/share", authed(h.Assistant.Share))
	mux.Handle("POST "+base+"/assistants/mirra/referral-link", authed(h.Assistant.ReferralLink))

	mux.Handle("POST "+base+"/generate", authed(h.Flows.Generate))
	mux.Handle("GET "+base+"/flow", authed(h.Flows.GetActive))
	mux.Handle("DELETE "+base+"/flow", authed(h.Flows.Reset))
	mux.Handle("POST "+base+"/flows/{flow}/start", authed(h.Flows.Start))
	mux.Handle("POST "+base+"/flows/{flow}/{action}", authed(h.Flows.Act))

	mux.Handle("GET "+base+"/admin/accounts", admin(h.Admin.ListAccounts))
	mux.Handle("GET "+base+"/admin/stats", admin(h.Admin.Stats))
	mux.Handle("PATCH "+base+"/admin/accounts/{code}", admin(h.Admin.UpdateAccount))
	mux.Handle("DELETE "+base+"/admin/accounts/{code}", admin(h.Admin.DeleteAccount))

	return mux
}

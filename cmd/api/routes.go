package main

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/assistant"
	"github.com/BogateyDi/ai-service-frontend/internal/auth"
	"github.com/BogateyDi/ai-service-frontend/internal/config"
	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/handlers"
	"github.com/BogateyDi/ai-service-frontend/internal/router"
	"github.com/BogateyDi/ai-service-frontend/internal/session"
)

// newAPI builds the handlers, mounts them under /api/v1 and wraps the mux in
// CORS for the browser front end.
func newAPI(
	cfg *config.Config,
	tokens *auth.Service,
	sessions *session.Registry,
	accountsSvc *accounts.Service,
	env *flow.Env,
	assistants *assistant.Service,
	logger *slog.Logger,
) http.Handler {
	apiV1Router := router.New(router.Handlers{
		Auth:      auth.NewHandler(tokens, logger),
		Accounts:  handlers.NewAccountHandler(accountsSvc, logger),
		Flows:     handlers.NewFlowHandler(accountsSvc, env, logger),
		Assistant: handlers.NewAssistantHandler(assistants, logger),
		Admin:     handlers.NewAdminHandler(accountsSvc, logger),
	}, tokens, sessions)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiV1Router)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)
}

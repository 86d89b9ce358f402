package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/auth"
	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/handlers"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/referral"
	"github.com/BogateyDi/ai-service-frontend/internal/session"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	st := store.New(context.Background(), store.NewMemoryKV(), nil)
	svc := accounts.NewService(st, ledger.NewService(st, ledger.NewMemoryRecorder(0), nil), referral.NewEngine(st), nil)
	tokens := auth.NewService("test-secret", time.Hour)
	sessions := session.NewRegistry(time.Hour, 0)
	h := Handlers{
		Auth:      auth.NewHandler(tokens, nil),
		Accounts:  handlers.NewAccountHandler(svc, nil),
		Flows:     handlers.NewFlowHandler(svc, &flow.Env{Accounts: svc}, nil),
		Assistant: handlers.NewAssistantHandler(nil, nil),
		Admin:     handlers.NewAdminHandler(svc, nil),
	}
	srv := httptest.NewServer(New(h, tokens, sessions))
	t.Cleanup(srv.Close)
	return srv, sessions
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoutes_Auth(t *testing.T) {
	srv, sessions := newTestServer(t)
	base := srv.URL + "/api/v1"

	if resp := do(t, http.MethodGet, base+"/packages", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("packages: %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, base+"/account", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("account without token: %d", resp.StatusCode)
	}

	resp := do(t, http.MethodPost, base+"/devices", "", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("devices: %d", resp.StatusCode)
	}
	var dev auth.DeviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&dev); err != nil {
		t.Fatal(err)
	}

	if resp := do(t, http.MethodGet, base+"/account", dev.Token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("account: %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, base+"/admin/stats", dev.Token, ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin before unlock: %d", resp.StatusCode)
	}

	sessions.Get(dev.DeviceID).SetAdminMode(true)
	if resp := do(t, http.MethodGet, base+"/admin/stats", dev.Token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin after unlock: %d", resp.StatusCode)
	}

	if resp := do(t, http.MethodPost, base+"/flows/standard/start", dev.Token, "{}"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("flow start while logged out: %d", resp.StatusCode)
	}
}

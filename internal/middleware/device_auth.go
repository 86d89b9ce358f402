package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/session"
)

type contextKey string

const (
	ctxDeviceKey  contextKey = "device"
	ctxSessionKey contextKey = "session"
)

// TokenValidator resolves a device token to its device ID.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// SessionSource returns the session of a device, creating it if needed.
type SessionSource interface {
	Get(device string) *session.Session
}

// DeviceAuth authenticates requests by the Bearer device token and puts the
// device ID and its session into the request context.
func DeviceAuth(tokens TokenValidator, sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			device, err := tokens.ValidateToken(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid device token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxDeviceKey, device)
			ctx = context.WithValue(ctx, ctxSessionKey, sessions.Get(device))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects requests from sessions that have not unlocked admin
// mode. It must run after DeviceAuth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFromCtx(r.Context())
		if s == nil || !s.AdminMode() {
			http.Error(w, `{"error":"admin mode is not active"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DeviceFromCtx returns the authenticated device ID or "".
func DeviceFromCtx(ctx context.Context) string {
	d, _ := ctx.Value(ctxDeviceKey).(string)
	return d
}

// SessionFromCtx returns the device session or nil.
func SessionFromCtx(ctx context.Context) *session.Session {
	s, _ := ctx.Value(ctxSessionKey).(*session.Session)
	return s
}

// WithDevice returns a context carrying the device and its session.
func WithDevice(ctx context.Context, device string, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, ctxDeviceKey, device)
	return context.WithValue(ctx, ctxSessionKey, s)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Package session keeps the non-persisted per-device state: admin mode, the
// active assistant and the flow wizards. Sessions expire after a period of
// inactivity.
package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

type Session struct {
	DeviceID string
	Flows    *flow.Set

	mu              sync.Mutex
	adminMode       bool
	activeAssistant models.Assistant
}

func newSession(device string) *Session {
	return &Session{DeviceID: device, Flows: flow.NewSet(), activeAssistant: models.Mirra}
}

func (s *Session) AdminMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminMode
}

func (s *Session) SetAdminMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminMode = on
}

func (s *Session) ActiveAssistant() models.Assistant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAssistant
}

func (s *Session) SetActiveAssistant(a models.Assistant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeAssistant = a
}

// Clear drops everything tied to the logged-in user: all flows are reset and
// admin mode is switched off.
func (s *Session) Clear() {
	s.Flows.Reset()
	s.mu.Lock()
	s.adminMode = false
	s.activeAssistant = models.Mirra
	s.mu.Unlock()
}

// Registry maps device IDs to sessions.
type Registry struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewRegistry(ttl, cleanup time.Duration) *Registry {
	return &Registry{cache: cache.New(ttl, cleanup)}
}

// Get returns the device's session, creating it on first use. Every access
// extends its lifetime.
func (r *Registry) Get(device string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(device); found {
		s := x.(*Session)
		r.cache.SetDefault(device, s)
		return s
	}
	s := newSession(device)
	r.cache.SetDefault(device, s)
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(device string) (*Session, bool) {
	if x, found := r.cache.Get(device); found {
		return x.(*Session), true
	}
	return nil, false
}

// Flows is Lookup narrowed to the flow set, for the section executor.
func (r *Registry) Flows(device string) (*flow.Set, bool) {
	s, ok := r.Lookup(device)
	if !ok {
		return nil, false
	}
	return s.Flows, true
}

func (r *Registry) Delete(device string) {
	r.cache.Delete(device)
}

func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

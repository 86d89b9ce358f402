package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// Load reads the account map from kv. Unreadable data yields an empty map and
// malformed entries are repaired or dropped; both are logged, never returned.
func Load(ctx context.Context, kv KV, log *slog.Logger) map[string]*models.Account {
	if log == nil {
		log = slog.Default()
	}
	accounts := make(map[string]*models.Account)
	raw, ok, err := kv.Get(ctx, KeyAccounts)
	if err != nil {
		log.Error("read account map", "error", err)
		return accounts
	}
	if !ok || raw == "" {
		return accounts
	}
	entries, err := decodeEntries([]byte(raw))
	if err != nil {
		log.Warn("account map unreadable, starting empty", "error", err)
		return accounts
	}
	for code, value := range entries {
		acc, err := migrateAccount(value)
		if err != nil {
			log.Warn("dropping malformed account", "code", code, "error", err)
			continue
		}
		accounts[code] = acc
	}
	return accounts
}

// decodeEntries accepts the array-of-pairs layout and the older plain object.
func decodeEntries(data []byte) (map[string]json.RawMessage, error) {
	var pairs []json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		var obj map[string]json.RawMessage
		if objErr := json.Unmarshal(data, &obj); objErr != nil {
			return nil, err
		}
		return obj, nil
	}
	out := make(map[string]json.RawMessage, len(pairs))
	for _, p := range pairs {
		var pair []json.RawMessage
		if err := json.Unmarshal(p, &pair); err != nil || len(pair) != 2 {
			continue
		}
		var code string
		if err := json.Unmarshal(pair[0], &code); err != nil || code == "" {
			continue
		}
		out[code] = pair[1]
	}
	return out, nil
}

// Encode serializes the map as [code, account] pairs ordered by code.
func Encode(accounts map[string]*models.Account) ([]byte, error) {
	codes := make([]string, 0, len(accounts))
	for code := range accounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	pairs := make([][2]any, 0, len(codes))
	for _, code := range codes {
		pairs = append(pairs, [2]any{code, accounts[code]})
	}
	return json.Marshal(pairs)
}

// Save writes the whole map. Failures are logged and swallowed.
func Save(ctx context.Context, kv KV, log *slog.Logger, accounts map[string]*models.Account) {
	if log == nil {
		log = slog.Default()
	}
	data, err := Encode(accounts)
	if err != nil {
		log.Error("encode account map", "error", err)
		return
	}
	if err := kv.Set(ctx, KeyAccounts, string(data)); err != nil {
		log.Error("write account map", "error", err)
	}
}

// Store owns the in-memory account map. Every mutation runs under one lock and
// the whole map is written through afterwards; the in-memory copy stays
// authoritative when that write fails.
type Store struct {
	kv  KV
	log *slog.Logger

	mu       sync.Mutex
	accounts map[string]*models.Account
}

func New(ctx context.Context, kv KV, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{kv: kv, log: log, accounts: Load(ctx, kv, log)}
}

// Get returns a copy of the account.
func (s *Store) Get(code string) (*models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[code]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

func (s *Store) Exists(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[code]
	return ok
}

// Snapshot returns copies of every account.
func (s *Store) Snapshot() map[string]*models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.Account, len(s.accounts))
	for code, acc := range s.accounts {
		out[code] = acc.Clone()
	}
	return out
}

// Update replaces the account under code with the result of fn. fn gets a
// copy; when it returns an error the stored account is left as it was.
func (s *Store) Update(ctx context.Context, code string, fn func(*models.Account) (*models.Account, error)) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[code]
	if !ok {
		return nil, ErrAccountNotFound
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	s.accounts[code] = next
	s.persistLocked(ctx)
	return next.Clone(), nil
}

// UpdateMany hands fn copies of the listed accounts that exist. fn may edit
// them and may add entries for listed codes that did not exist. Nothing is
// stored when fn fails.
func (s *Store) UpdateMany(ctx context.Context, codes []string, fn func(map[string]*models.Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make(map[string]*models.Account, len(codes))
	for _, code := range codes {
		if acc, ok := s.accounts[code]; ok {
			work[code] = acc.Clone()
		}
	}
	if err := fn(work); err != nil {
		return err
	}
	for _, code := range codes {
		if acc, ok := work[code]; ok && acc != nil {
			s.accounts[code] = acc
		}
	}
	s.persistLocked(ctx)
	return nil
}

func (s *Store) Create(ctx context.Context, code string, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[code]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, code)
	}
	s.accounts[code] = acc.Clone()
	s.persistLocked(ctx)
	return nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[code]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, code)
	s.persistLocked(ctx)
	return nil
}

func (s *Store) persistLocked(ctx context.Context) {
	Save(ctx, s.kv, s.log, s.accounts)
}

// LoadActiveCode returns the code the device is logged in with, or "".
func (s *Store) LoadActiveCode(ctx context.Context, device string) string {
	return s.readKey(ctx, keyCurrentUserPrefix+device)
}

// SaveActiveCode records the device's login; an empty code logs it out.
func (s *Store) SaveActiveCode(ctx context.Context, device, code string) {
	s.writeKey(ctx, keyCurrentUserPrefix+device, code)
}

func (s *Store) PendingReferral(ctx context.Context, device string) string {
	return s.readKey(ctx, keyReferralPrefix+device)
}

func (s *Store) SavePendingReferral(ctx context.Context, device, code string) {
	s.writeKey(ctx, keyReferralPrefix+device, code)
}

func (s *Store) readKey(ctx context.Context, key string) string {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Error("read key", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) writeKey(ctx context.Context, key, value string) {
	var err error
	if value == "" {
		err = s.kv.Delete(ctx, key)
	} else {
		err = s.kv.Set(ctx, key, value)
	}
	if err != nil {
		s.log.Error("write key", "key", key, "error", err)
	}
}

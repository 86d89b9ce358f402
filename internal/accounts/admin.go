package accounts

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// StorageCapacity is the nominal total the admin dashboard measures usage
// against.
const StorageCapacity = 100 * 1024 * 1024

var ErrInvalidStorageLimit = errors.New("storage limit must be positive")

// Summary is one row of the admin account list.
type Summary struct {
	Code           string `json:"code"`
	Generations    int    `json:"generations"`
	ReferrerCode   string `json:"referrer_code,omitempty"`
	HasMirra       bool   `json:"has_mirra"`
	HasDary        bool   `json:"has_dary"`
	HistoryCount   int    `json:"history_count"`
	DataSize       int    `json:"data_size"`
	MaxStorageSize int    `json:"max_storage_size"`
}

func Summarize(code string, a *models.Account) Summary {
	return Summary{
		Code:           code,
		Generations:    a.Generations,
		ReferrerCode:   a.ReferrerCode,
		HasMirra:       a.HasMirra,
		HasDary:        a.HasDary,
		HistoryCount:   len(a.GenerationHistory),
		DataSize:       a.SerializedSize(),
		MaxStorageSize: a.MaxStorageSize,
	}
}

// Sort keys for ListAccounts.
const (
	SortCode        = "code"
	SortGenerations = "generations"
	SortDataSize    = "dataSize"
	SortStorage     = "maxStorageSize"
)

// ListAccounts returns accounts whose code contains query (case-insensitive),
// ordered by sortBy.
func (s *Service) ListAccounts(query, sortBy string, desc bool) []Summary {
	query = strings.ToUpper(strings.TrimSpace(query))
	var out []Summary
	for code, acc := range s.store.Snapshot() {
		if query != "" && !strings.Contains(code, query) {
			continue
		}
		out = append(out, Summarize(code, acc))
	}
	less := func(a, b Summary) bool { return a.Code < b.Code }
	switch sortBy {
	case SortGenerations:
		less = func(a, b Summary) bool { return a.Generations < b.Generations }
	case SortDataSize:
		less = func(a, b Summary) bool { return a.DataSize < b.DataSize }
	case SortStorage:
		less = func(a, b Summary) bool { return a.MaxStorageSize < b.MaxStorageSize }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

type Stats struct {
	Users            int     `json:"users"`
	TotalGenerations int     `json:"total_generations"`
	MirraOwners      int     `json:"mirra_owners"`
	DaryOwners       int     `json:"dary_owners"`
	TotalStorage     int     `json:"total_storage"`
	StorageCapacity  int     `json:"storage_capacity"`
	StorageUsedPct   float64 `json:"storage_used_pct"`
}

func (s *Service) Stats() Stats {
	st := Stats{StorageCapacity: StorageCapacity}
	for _, acc := range s.store.Snapshot() {
		st.Users++
		st.TotalGenerations += acc.Generations
		if acc.HasMirra {
			st.MirraOwners++
		}
		if acc.HasDary {
			st.DaryOwners++
		}
		st.TotalStorage += acc.SerializedSize()
	}
	st.StorageUsedPct = math.Round(float64(st.TotalStorage)/StorageCapacity*10000) / 100
	return st
}

// AdjustGenerations adds a signed delta, flooring the balance at zero.
func (s *Service) AdjustGenerations(ctx context.Context, code string, delta int) (*models.Account, error) {
	return s.ledger.Adjust(ctx, code, delta, "admin adjustment")
}

func (s *Service) SetStorageLimit(ctx context.Context, code string, megabytes int) (*models.Account, error) {
	if megabytes <= 0 {
		return nil, ErrInvalidStorageLimit
	}
	return s.store.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		a.MaxStorageSize = megabytes * 1024 * 1024
		return a, nil
	})
}

func (s *Service) ToggleAssistantAccess(ctx context.Context, code string, asst models.Assistant) (*models.Account, error) {
	if !asst.Valid() {
		return nil, ErrUnknownAssistant
	}
	return s.store.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		a.SetOwned(asst, !a.Owns(asst))
		return a, nil
	})
}

// DeleteAccount removes the account. Devices logged in with it are logged
// out on their next request.
func (s *Service) DeleteAccount(ctx context.Context, code string) error {
	if err := s.store.Delete(ctx, code); err != nil {
		return err
	}
	s.log.Info("account deleted by admin", "code", code)
	return nil
}

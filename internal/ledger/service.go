package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

// AccountStore is the slice of the account store the ledger needs.
type AccountStore interface {
	Get(code string) (*models.Account, bool)
	Update(ctx context.Context, code string, fn func(*models.Account) (*models.Account, error)) (*models.Account, error)
}

// Recorder keeps the audit trail of balance changes.
type Recorder interface {
	Record(ctx context.Context, e *models.LedgerEntry) error
	ListByCode(ctx context.Context, code string, limit int) ([]*models.LedgerEntry, error)
}

// Service applies balance changes to stored accounts and records each one.
type Service struct {
	accounts AccountStore
	recorder Recorder
	log      *slog.Logger
}

func NewService(accounts AccountStore, recorder Recorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{accounts: accounts, recorder: recorder, log: log}
}

func (s *Service) Balance(code string) (int, error) {
	acc, ok := s.accounts.Get(code)
	if !ok {
		return 0, store.ErrAccountNotFound
	}
	return acc.Generations, nil
}

// Charge debits cost from the account. The check and the debit happen in one
// store update, so two concurrent charges can never overdraw.
func (s *Service) Charge(ctx context.Context, code string, cost int, reason string) (*models.Account, error) {
	acc, err := s.accounts.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		return Debit(a, cost)
	})
	if err != nil {
		return nil, err
	}
	s.Record(ctx, code, models.EntryDebit, -cost, acc.Generations, reason)
	return acc, nil
}

func (s *Service) Grant(ctx context.Context, code string, amount int, entryType, reason string) (*models.Account, error) {
	acc, err := s.accounts.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		return Credit(a, amount)
	})
	if err != nil {
		return nil, err
	}
	s.Record(ctx, code, entryType, amount, acc.Generations, reason)
	return acc, nil
}

// Adjust applies a signed change and floors the balance at zero.
func (s *Service) Adjust(ctx context.Context, code string, delta int, reason string) (*models.Account, error) {
	var applied int
	acc, err := s.accounts.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		next := max(0, a.Generations+delta)
		applied = next - a.Generations
		a.Generations = next
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	s.Record(ctx, code, models.EntryAdminAdjust, applied, acc.Generations, reason)
	return acc, nil
}

// Record appends an audit entry. Balance changes made outside Charge and Grant
// (multi-account updates) call it directly. Failures are logged only.
func (s *Service) Record(ctx context.Context, code, entryType string, amount, balanceAfter int, reason string) {
	if s.recorder == nil {
		return
	}
	e := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountCode:  code,
		EntryType:    entryType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, e); err != nil {
		s.log.Error("record ledger entry", "code", code, "entry_type", entryType, "error", err)
	}
}

func (s *Service) Entries(ctx context.Context, code string, limit int) ([]*models.LedgerEntry, error) {
	if s.recorder == nil {
		return nil, nil
	}
	return s.recorder.ListByCode(ctx, code, limit)
}

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

// ---------------------------------------------------------------------------
// In-memory AccountStore. Update holds the lock for the whole mutation, like
// the real store.
// ---------------------------------------------------------------------------

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newMockAccounts(balances map[string]int) *mockAccounts {
	m := &mockAccounts{accounts: make(map[string]*models.Account)}
	for code, b := range balances {
		m.accounts[code] = models.NewAccount(b)
	}
	return m
}

func (m *mockAccounts) Get(code string) (*models.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[code]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

func (m *mockAccounts) Update(_ context.Context, code string, fn func(*models.Account) (*models.Account, error)) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[code]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	next, err := fn(a.Clone())
	if err != nil {
		return nil, err
	}
	m.accounts[code] = next
	return next.Clone(), nil
}

func (m *mockAccounts) balance(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[code].Generations
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestService_ChargeRecordsEntry(t *testing.T) {
	ctx := context.Background()
	accounts := newMockAccounts(map[string]int{"A": 5})
	rec := NewMemoryRecorder(0)
	svc := NewService(accounts, rec, nil)

	acc, err := svc.Charge(ctx, "A", 2, "generateNatalChart")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Generations != 3 {
		t.Errorf("balance = %d, want 3", acc.Generations)
	}
	entries, _ := rec.ListByCode(ctx, "A", 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.EntryType != models.EntryDebit || e.Amount != -2 || e.BalanceAfter != 3 || e.Reason != "generateNatalChart" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestService_ChargeInsufficientLeavesBalance(t *testing.T) {
	ctx := context.Background()
	accounts := newMockAccounts(map[string]int{"A": 1})
	rec := NewMemoryRecorder(0)
	svc := NewService(accounts, rec, nil)

	_, err := svc.Charge(ctx, "A", 2, "x")
	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Required != 2 || ib.Available != 1 {
		t.Fatalf("expected shortfall 2/1, got %v", err)
	}
	if accounts.balance("A") != 1 {
		t.Errorf("balance changed to %d", accounts.balance("A"))
	}
	if entries, _ := rec.ListByCode(ctx, "A", 0); len(entries) != 0 {
		t.Errorf("rejected charge must not be recorded")
	}
}

func TestService_ConcurrentChargesNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	accounts := newMockAccounts(map[string]int{"A": 10})
	svc := NewService(accounts, nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Charge(ctx, "A", 1, "chat"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("succeeded = %d, want 10", succeeded)
	}
	if accounts.balance("A") != 0 {
		t.Errorf("balance = %d, want 0", accounts.balance("A"))
	}
}

func TestService_AdjustFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	accounts := newMockAccounts(map[string]int{"A": 4})
	rec := NewMemoryRecorder(0)
	svc := NewService(accounts, rec, nil)

	acc, err := svc.Adjust(ctx, "A", -10, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Generations != 0 {
		t.Errorf("balance = %d, want 0", acc.Generations)
	}
	entries, _ := rec.ListByCode(ctx, "A", 1)
	if len(entries) != 1 || entries[0].Amount != -4 {
		t.Errorf("expected applied amount -4, got %+v", entries)
	}
}

func TestService_UnknownAccount(t *testing.T) {
	svc := NewService(newMockAccounts(nil), nil, nil)
	if _, err := svc.Balance("missing"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.Grant(context.Background(), "missing", 1, models.EntryPurchase, ""); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryRecorder_KeepsNewestFirstWithinLimit(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder(3)
	for i := 1; i <= 5; i++ {
		_ = rec.Record(ctx, &models.LedgerEntry{AccountCode: "A", Amount: i})
	}
	entries, _ := rec.ListByCode(ctx, "A", 0)
	if len(entries) != 3 || entries[0].Amount != 5 || entries[2].Amount != 3 {
		t.Errorf("unexpected entries %+v", entries)
	}
}

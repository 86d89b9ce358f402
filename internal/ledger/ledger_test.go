package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// ---------------------------------------------------------------------------
// Debit / Credit
// ---------------------------------------------------------------------------

func TestDebit_Monotonicity(t *testing.T) {
	for balance := 0; balance <= 6; balance++ {
		for cost := 0; cost <= 6; cost++ {
			acc := models.NewAccount(balance)
			got, err := Debit(acc, cost)

			if balance < cost {
				var ib *InsufficientBalanceError
				if !errors.As(err, &ib) {
					t.Fatalf("balance=%d cost=%d: expected InsufficientBalanceError, got %v", balance, cost, err)
				}
				if ib.Required != cost || ib.Available != balance {
					t.Errorf("balance=%d cost=%d: got required=%d available=%d", balance, cost, ib.Required, ib.Available)
				}
				if !errors.Is(err, ErrInsufficientBalance) {
					t.Errorf("expected errors.Is(err, ErrInsufficientBalance)")
				}
				if got != nil {
					t.Errorf("rejected debit must not return an account")
				}
			} else {
				if err != nil {
					t.Fatalf("balance=%d cost=%d: unexpected error %v", balance, cost, err)
				}
				if got.Generations != balance-cost {
					t.Errorf("balance=%d cost=%d: got %d", balance, cost, got.Generations)
				}
			}
			if acc.Generations != balance {
				t.Errorf("input account mutated: %d -> %d", balance, acc.Generations)
			}
		}
	}
}

func TestDebit_RejectsNegativeCost(t *testing.T) {
	if _, err := Debit(models.NewAccount(5), -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestInsufficientBalanceError_Message(t *testing.T) {
	err := &InsufficientBalanceError{Required: 2, Available: 1}
	if !strings.Contains(err.Error(), "required 2") || !strings.Contains(err.Error(), "you have 1") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCredit(t *testing.T) {
	acc := models.NewAccount(3)
	got, err := Credit(acc, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Generations != 10 || acc.Generations != 3 {
		t.Errorf("got %d (input %d), want 10 (input 3)", got.Generations, acc.Generations)
	}
	if _, err := Credit(acc, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRequireBalance(t *testing.T) {
	if err := RequireBalance(models.NewAccount(2), 2); err != nil {
		t.Errorf("expected pass, got %v", err)
	}
	if err := RequireBalance(models.NewAccount(1), 2); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected insufficient balance, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Storage limit
// ---------------------------------------------------------------------------

func TestApplyIfWithinStorageLimit_RejectionIsAtomic(t *testing.T) {
	acc := models.NewAccount(5)
	acc.MaxStorageSize = acc.SerializedSize() + 50
	before, _ := json.Marshal(acc)

	_, err := ApplyIfWithinStorageLimit(acc, func(a *models.Account) error {
		a.Generations = 0
		a.GenerationHistory = append(a.GenerationHistory, models.GenerationRecord{
			ID: "x", Text: strings.Repeat("a", 500),
		})
		return nil
	})
	if !errors.Is(err, ErrStorageLimitExceeded) {
		t.Fatalf("expected ErrStorageLimitExceeded, got %v", err)
	}
	after, _ := json.Marshal(acc)
	if !bytes.Equal(before, after) {
		t.Errorf("account changed after rejected mutation")
	}
}

func TestApplyIfWithinStorageLimit_UsesResultLimit(t *testing.T) {
	acc := models.NewAccount(5)
	acc.MaxStorageSize = 10

	got, err := ApplyIfWithinStorageLimit(acc, func(a *models.Account) error {
		a.MaxStorageSize = models.DefaultMaxStorageSize
		a.Generations++
		return nil
	})
	if err != nil {
		t.Fatalf("limit raised in the same mutation should pass: %v", err)
	}
	if got.Generations != 6 {
		t.Errorf("got %d, want 6", got.Generations)
	}
}

func TestApplyIfWithinStorageLimit_PropagatesMutationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ApplyIfWithinStorageLimit(models.NewAccount(1), func(*models.Account) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Costs
// ---------------------------------------------------------------------------

func TestCosts(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"rewrite empty", RewriteCost(0, false), 1},
		{"rewrite 5000", RewriteCost(5000, false), 1},
		{"rewrite 5001", RewriteCost(5001, false), 2},
		{"rewrite file only", RewriteCost(0, true), 1},
		{"rewrite text and file", RewriteCost(12000, true), 4},
		{"audio 1 min", AudioScriptCost(1), 2},
		{"audio 5 min", AudioScriptCost(5), 2},
		{"audio 6 min", AudioScriptCost(6), 4},
		{"audio 30 min", AudioScriptCost(30), 12},
		{"chat short", ChatExchangeCost(10, 20, 0), 1},
		{"chat long", ChatExchangeCost(4000, 4000, 2001), 3},
		{"homework", FileTaskCost(models.DocDoHomework), 2},
		{"control work", FileTaskCost(models.DocSolveControlWork), 1},
		{"verify", AnalysisCost(models.DocAnalysisVerify), 3},
		{"short analysis", AnalysisCost(models.DocAnalysisShort), 2},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, c.got, c.want)
		}
	}
}

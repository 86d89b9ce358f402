package ledger

import (
	"errors"
	"fmt"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

var (
	// ErrInsufficientBalance matches any *InsufficientBalanceError via errors.Is.
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrStorageLimitExceeded = errors.New("storage limit exceeded")
	ErrInvalidAmount        = errors.New("amount must not be negative")
)

// InsufficientBalanceError reports the shortfall of a rejected debit.
type InsufficientBalanceError struct {
	Required  int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient generations: required %d, you have %d", e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Debit returns a copy of acc with cost taken off the balance. When the
// balance is too small acc is untouched and the error carries both counts.
func Debit(acc *models.Account, cost int) (*models.Account, error) {
	if cost < 0 {
		return nil, ErrInvalidAmount
	}
	if acc.Generations < cost {
		return nil, &InsufficientBalanceError{Required: cost, Available: acc.Generations}
	}
	next := acc.Clone()
	next.Generations -= cost
	return next, nil
}

// Credit returns a copy of acc with amount added to the balance.
func Credit(acc *models.Account, amount int) (*models.Account, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	next := acc.Clone()
	next.Generations += amount
	return next, nil
}

// RequireBalance is the pre-flight check run before a flow starts.
func RequireBalance(acc *models.Account, min int) error {
	if acc.Generations < min {
		return &InsufficientBalanceError{Required: min, Available: acc.Generations}
	}
	return nil
}

// ApplyIfWithinStorageLimit runs mutate on a copy of acc and returns the copy
// if its serialized size fits in its own MaxStorageSize. Otherwise the copy is
// discarded and acc is left exactly as it was.
func ApplyIfWithinStorageLimit(acc *models.Account, mutate func(*models.Account) error) (*models.Account, error) {
	next := acc.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if size := next.SerializedSize(); size > next.MaxStorageSize {
		return nil, fmt.Errorf("%w: %d of %d bytes", ErrStorageLimitExceeded, size, next.MaxStorageSize)
	}
	return next, nil
}

// Package referral captures inbound referral codes and pays referrers when the
// accounts they brought in make purchases.
package referral

import (
	"context"
	"regexp"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ValidCode reports whether s has the shape of an access code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// Purchase kinds that pay a referral bonus.
type PurchaseKind int

const (
	PackagePurchase PurchaseKind = iota
	AssistantPurchase
)

// Bonus is what the referrer earns for one purchase: the full package amount,
// or a flat amount for an assistant.
func Bonus(kind PurchaseKind, generations int) int {
	if kind == AssistantPurchase {
		return models.AssistantPurchaseGenerations
	}
	return generations
}

// PendingStore holds the per-device pending referral and login state.
type PendingStore interface {
	LoadActiveCode(ctx context.Context, device string) string
	PendingReferral(ctx context.Context, device string) string
	SavePendingReferral(ctx context.Context, device, code string)
}

type Engine struct {
	store PendingStore
}

func NewEngine(store PendingStore) *Engine {
	return &Engine{store: store}
}

// Capture stores ref as the device's pending referral. It is ignored when the
// device is already logged in, already holds a pending code, or ref is not a
// valid code.
func (e *Engine) Capture(ctx context.Context, device, ref string) bool {
	ref = strings.TrimSpace(ref)
	if !ValidCode(ref) {
		return false
	}
	if e.store.LoadActiveCode(ctx, device) != "" || e.store.PendingReferral(ctx, device) != "" {
		return false
	}
	e.store.SavePendingReferral(ctx, device, ref)
	return true
}

// Pending returns the device's pending referral without clearing it.
func (e *Engine) Pending(ctx context.Context, device string) string {
	return e.store.PendingReferral(ctx, device)
}

// Consume returns the pending referral and deletes it.
func (e *Engine) Consume(ctx context.Context, device string) string {
	ref := e.store.PendingReferral(ctx, device)
	if ref != "" {
		e.store.SavePendingReferral(ctx, device, "")
	}
	return ref
}

// PayReferrer credits the referrer of buyerCode inside a multi-account update.
// accounts must hold the buyer and, if it exists, the referrer. It returns the
// credited code, or "" when nobody was paid.
func PayReferrer(accounts map[string]*models.Account, buyerCode string, bonus int) string {
	buyer, ok := accounts[buyerCode]
	if !ok || buyer.ReferrerCode == "" || bonus <= 0 {
		return ""
	}
	referrer, ok := accounts[buyer.ReferrerCode]
	if !ok {
		return ""
	}
	referrer.Generations += bonus
	return buyer.ReferrerCode
}

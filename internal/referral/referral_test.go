package referral

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

type fakePending struct {
	mu      sync.Mutex
	active  map[string]string
	pending map[string]string
}

func newFakePending() *fakePending {
	return &fakePending{active: map[string]string{}, pending: map[string]string{}}
}

func (f *fakePending) LoadActiveCode(_ context.Context, device string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[device]
}

func (f *fakePending) PendingReferral(_ context.Context, device string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[device]
}

func (f *fakePending) SavePendingReferral(_ context.Context, device, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == "" {
		delete(f.pending, device)
		return
	}
	f.pending[device] = code
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("ABCDE12345"))
	assert.False(t, ValidCode("abcde12345"))
	assert.False(t, ValidCode("ABCDE1234"))
	assert.False(t, ValidCode("ABCDE123456"))
	assert.False(t, ValidCode("ABCDE-1234"))
	assert.False(t, ValidCode(""))
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	f := newFakePending()
	e := NewEngine(f)

	assert.False(t, e.Capture(ctx, "d1", "bad"), "invalid code ignored")
	assert.True(t, e.Capture(ctx, "d1", "REFERRER01"))
	assert.False(t, e.Capture(ctx, "d1", "REFERRER02"), "first pending code wins")
	assert.Equal(t, "REFERRER01", f.pending["d1"])

	f.active["d2"] = "SOMECODE01"
	assert.False(t, e.Capture(ctx, "d2", "REFERRER01"), "logged-in device ignores referrals")
	assert.Empty(t, f.pending["d2"])
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFakePending()
	e := NewEngine(f)
	e.Capture(ctx, "d1", "REFERRER01")

	assert.Equal(t, "REFERRER01", e.Pending(ctx, "d1"))
	assert.Equal(t, "REFERRER01", e.Pending(ctx, "d1"), "peeking does not clear")
	assert.Equal(t, "REFERRER01", e.Consume(ctx, "d1"))
	assert.Equal(t, "", e.Consume(ctx, "d1"))
}

func TestBonus(t *testing.T) {
	assert.Equal(t, 50, Bonus(PackagePurchase, 50))
	assert.Equal(t, 1000, Bonus(PackagePurchase, 1000))
	assert.Equal(t, models.AssistantPurchaseGenerations, Bonus(AssistantPurchase, 0))
}

func TestPayReferrer(t *testing.T) {
	buyer := models.NewAccount(0)
	buyer.ReferrerCode = "B"
	accounts := map[string]*models.Account{"A": buyer, "B": models.NewAccount(100)}

	assert.Equal(t, "B", PayReferrer(accounts, "A", 50))
	assert.Equal(t, 150, accounts["B"].Generations)
	assert.Equal(t, 0, accounts["A"].Generations)

	delete(accounts, "B")
	assert.Equal(t, "", PayReferrer(accounts, "A", 50), "missing referrer is not paid")

	assert.Equal(t, "", PayReferrer(map[string]*models.Account{"C": models.NewAccount(1)}, "C", 10))
}

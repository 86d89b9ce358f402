package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type values.
const (
	EntryPurchase          = "purchase"
	EntryAssistantPurchase = "assistant_purchase"
	EntryReferralBonus     = "referral_bonus"
	EntryDebit             = "debit"
	EntryAdminAdjust       = "admin_adjust"
)

type LedgerEntry struct {
	ID           uuid.UUID `json:"id"`
	AccountCode  string    `json:"account_code"`
	EntryType    string    `json:"entry_type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

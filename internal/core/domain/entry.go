package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "CREDIT"
	EntryTypeDebit  EntryType = "DEBIT"
)

// Valid reports whether t is CREDIT or DEBIT.
func (t EntryType) Valid() bool {
	return t == EntryTypeCredit || t == EntryTypeDebit
}

// Category tags why an entry was written. It is informational only and
// never drives ledger behavior.
type Category string

const (
	CategorySignupBonus      Category = "SIGNUP_BONUS"
	CategoryPriceDropReward  Category = "PRICE_DROP_REWARD"
	CategoryPremiumPurchase  Category = "PREMIUM_PURCHASE"
	CategorySystemAdjustment Category = "SYSTEM_ADJUSTMENT"
)

// MaxCategoryLength matches the category column width.
const MaxCategoryLength = 30

// MaxIdempotencyKeyLength matches the idempotency_key column width.
const MaxIdempotencyKeyLength = 255

// Metadata is an opaque caller-supplied map stored alongside an entry.
type Metadata map[string]any

// LedgerEntry is one immutable credit or debit against a wallet.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	Sequence       int64           `json:"sequence"`
	Type           EntryType       `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Category       Category        `json:"category"`
	IdempotencyKey string          `json:"idempotency_key"`
	IntegrityHash  string          `json:"integrity_hash"`
	Metadata       Metadata        `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount returns the amount as it affects the balance: positive for
// credits, negative for debits.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Type == EntryTypeDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Apply returns the balance after applying an entry of type t and amount to
// balance. The result may be negative; callers reject overdrafts.
func Apply(balance decimal.Decimal, t EntryType, amount decimal.Decimal) decimal.Decimal {
	if t == EntryTypeDebit {
		return balance.Sub(amount)
	}
	return balance.Add(amount)
}

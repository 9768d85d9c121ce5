package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntegrityStatus is the human-facing verification badge of an entry.
type IntegrityStatus string

const (
	IntegrityVerified    IntegrityStatus = "Verified"
	IntegrityCompromised IntegrityStatus = "Compromised (Tampered)"
)

// StatementLine is a ledger entry together with its verification result.
type StatementLine struct {
	LedgerEntry
	Integrity IntegrityStatus `json:"integrity"`
}

// Statement is a wallet snapshot with its most recent entries, newest first.
type Statement struct {
	OwnerID string          `json:"owner_id"`
	Balance decimal.Decimal `json:"balance"`
	Status  WalletStatus    `json:"status"`
	Entries []StatementLine `json:"entries"`
	Total   int64           `json:"total_entries"`
}

// AuditReport is the outcome of a full reconciliation of one wallet.
type AuditReport struct {
	WalletID        uuid.UUID       `json:"wallet_id"`
	OwnerID         string          `json:"owner_id"`
	EntryCount      int             `json:"entry_count"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	BrokenChain     []uuid.UUID     `json:"broken_chain,omitempty"`
	Tampered        []uuid.UUID     `json:"tampered,omitempty"`
}

// Consistent reports whether the wallet passed every reconciliation check.
func (r *AuditReport) Consistent() bool {
	return r.StoredBalance.Equal(r.ComputedBalance) &&
		len(r.BrokenChain) == 0 &&
		len(r.Tampered) == 0
}

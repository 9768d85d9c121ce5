package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusFrozen    WalletStatus = "FROZEN"
	WalletStatusSuspended WalletStatus = "SUSPENDED"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusActive, WalletStatusFrozen, WalletStatusSuspended:
		return true
	}
	return false
}

// Wallet is the per-owner balance holder. Balance always equals the signed
// sum of the wallet's ledger entries.
type Wallet struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Balance     decimal.Decimal `json:"balance"`
	Status      WalletStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`
}

// IsActive returns true if the wallet may accept new entries.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// NewWallet returns a zero-balance ACTIVE wallet for ownerID.
func NewWallet(ownerID string, now time.Time) *Wallet {
	return &Wallet{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Balance:     decimal.Zero,
		Status:      WalletStatusActive,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

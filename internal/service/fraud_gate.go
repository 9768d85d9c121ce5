package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// DefaultFraudWindow is the look-back window for velocity checks.
	DefaultFraudWindow = 60 * time.Second
	// DefaultFraudThreshold is the number of entries tolerated inside the
	// window; one more freezes the wallet.
	DefaultFraudThreshold = 5
)

// FraudGate is the velocity check run under the wallet lock.
type FraudGate struct {
	entries   ports.EntryRepository
	window    time.Duration
	threshold int
}

// NewFraudGate creates a gate with the default window and threshold.
func NewFraudGate(entries ports.EntryRepository) *FraudGate {
	return &FraudGate{
		entries:   entries,
		window:    DefaultFraudWindow,
		threshold: DefaultFraudThreshold,
	}
}

// Tripped reports whether the wallet has more than threshold entries
// created in the window ending at now. It must run inside the locking tx.
func (g *FraudGate) Tripped(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, now time.Time) (bool, error) {
	n, err := g.entries.CountSince(ctx, tx, walletID, now.Add(-g.window))
	if err != nil {
		return false, err
	}
	return n > g.threshold, nil
}

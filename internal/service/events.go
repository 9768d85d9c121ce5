package service

import (
	"context"
	"encoding/json"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	EventEntryRecorded = "ledger.entry.recorded"
	EventWalletFrozen  = "ledger.wallet.frozen"

	publishTimeout = 3 * time.Second
)

// Event is the envelope published after a ledger commit.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// EntryRecordedData is the payload of EventEntryRecorded.
type EntryRecordedData struct {
	EntryID        uuid.UUID        `json:"entry_id"`
	WalletID       uuid.UUID        `json:"wallet_id"`
	OwnerID        string           `json:"owner_id"`
	Sequence       int64            `json:"sequence"`
	Type           domain.EntryType `json:"type"`
	Amount         string           `json:"amount"`
	RunningBalance string           `json:"running_balance"`
	Category       domain.Category  `json:"category"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// WalletFrozenData is the payload of EventWalletFrozen.
type WalletFrozenData struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	OwnerID  string          `json:"owner_id"`
	Balance  decimal.Decimal `json:"balance"`
	Reason   string          `json:"reason"`
}

// eventEmitter publishes envelopes on one topic, keyed by wallet so that a
// partitioned broker keeps per-wallet order. Failures are logged only.
type eventEmitter struct {
	publisher ports.EventPublisher
	topic     string
	log       zerolog.Logger
}

func (e *eventEmitter) emit(ctx context.Context, eventType string, walletID uuid.UUID, data any) {
	if e == nil || e.publisher == nil {
		return
	}
	payload, err := json.Marshal(Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, e.topic, walletID.String(), payload); err != nil {
		e.log.Warn().Err(err).
			Str("event", eventType).
			Str("wallet_id", walletID.String()).
			Msg("failed to publish event")
	}
}

func entryRecorded(ownerID string, e *domain.LedgerEntry) EntryRecordedData {
	return EntryRecordedData{
		EntryID:        e.ID,
		WalletID:       e.WalletID,
		OwnerID:        ownerID,
		Sequence:       e.Sequence,
		Type:           e.Type,
		Amount:         domain.CanonicalAmount(e.Amount),
		RunningBalance: domain.CanonicalAmount(e.RunningBalance),
		Category:       e.Category,
		IdempotencyKey: e.IdempotencyKey,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// MaxOwnerIDLength matches the owner_id column width.
const MaxOwnerIDLength = 255

// DefaultIdempotencyTTL is how long a committed key stays in the fast-path cache.
const DefaultIdempotencyTTL = 24 * time.Hour

type ledgerService struct {
	wallets    ports.WalletRepository
	entries    ports.EntryRepository
	transactor ports.Transactor
	hasher     ports.IntegrityHasher
	audit      ports.AuditService
	fraud      *FraudGate
	log        zerolog.Logger

	idempCache     ports.IdempotencyCache
	idempotencyTTL time.Duration
	events         *eventEmitter
	now            func() time.Time
}

// LedgerOption customises the ledger service.
type LedgerOption func(*ledgerService)

// WithIdempotencyCache enables the Redis fast-path duplicate check.
func WithIdempotencyCache(cache ports.IdempotencyCache, ttl time.Duration) LedgerOption {
	return func(s *ledgerService) {
		s.idempCache = cache
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithEventPublisher publishes committed entries and freezes on topic.
func WithEventPublisher(publisher ports.EventPublisher, topic string) LedgerOption {
	return func(s *ledgerService) {
		s.events = &eventEmitter{publisher: publisher, topic: topic, log: s.log}
	}
}

// WithFraudGate overrides the default velocity check.
func WithFraudGate(g *FraudGate) LedgerOption {
	return func(s *ledgerService) { s.fraud = g }
}

// WithClock overrides the time source used for entry timestamps and the
// fraud window.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *ledgerService) { s.now = now }
}

// NewLedgerService creates the ledger engine. audit may be nil.
func NewLedgerService(
	wallets ports.WalletRepository,
	entries ports.EntryRepository,
	transactor ports.Transactor,
	hasher ports.IntegrityHasher,
	audit ports.AuditService,
	log zerolog.Logger,
	opts ...LedgerOption,
) ports.LedgerService {
	s := &ledgerService{
		wallets:        wallets,
		entries:        entries,
		transactor:     transactor,
		hasher:         hasher,
		audit:          audit,
		fraud:          NewFraudGate(entries),
		log:            log,
		idempotencyTTL: DefaultIdempotencyTTL,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateWallet returns the owner's wallet, provisioning an empty ACTIVE
// one on first use.
func (s *ledgerService) GetOrCreateWallet(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	ownerID, err := normalizeOwnerID(ownerID)
	if err != nil {
		return nil, err
	}
	w, err := s.wallets.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return w, nil
}

// RecordTransaction applies one credit or debit to the owner's wallet.
//
// Under the wallet row lock it checks, in order: status, idempotency key,
// velocity, and funds. A velocity breach commits the freeze and then fails
// with FraudSuspected. On success the entry, with its running balance and
// integrity hash, and the new wallet balance commit together.
func (s *ledgerService) RecordTransaction(ctx context.Context, req ports.RecordTransactionRequest) (*domain.LedgerEntry, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	if s.idempCache != nil {
		seen, err := s.idempCache.Seen(ctx, req.IdempotencyKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("idempotency cache unavailable, falling back to database")
		} else if seen {
			return nil, s.cachedDuplicate(ctx, req.OwnerID)
		}
	}

	if _, err := s.wallets.GetOrCreate(ctx, req.OwnerID); err != nil {
		return nil, s.mapError(err)
	}

	var (
		entry  *domain.LedgerEntry
		frozen *domain.Wallet
	)
	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		wallet, err := s.wallets.GetByOwnerIDForUpdate(ctx, tx, req.OwnerID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return apperror.ErrNotFound("Wallet")
		}
		if !wallet.IsActive() {
			return apperror.ErrWalletNotActive(string(wallet.Status))
		}

		dup, err := s.entries.ExistsByIdempotencyKey(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if dup {
			return apperror.ErrDuplicateTransaction()
		}

		now := s.now()
		tripped, err := s.fraud.Tripped(ctx, tx, wallet.ID, now)
		if err != nil {
			return err
		}
		if tripped {
			if err := s.wallets.UpdateStatus(ctx, tx, wallet.ID, domain.WalletStatusFrozen, now); err != nil {
				return err
			}
			wallet.Status = domain.WalletStatusFrozen
			wallet.LastUpdated = now
			frozen = wallet
			return nil
		}

		newBalance := domain.Apply(wallet.Balance, req.Type, req.Amount)
		if newBalance.IsNegative() {
			return apperror.ErrInsufficientFunds()
		}
		if newBalance.GreaterThan(domain.MaxBalance) {
			return apperror.InvalidInput("Resulting balance exceeds the supported maximum")
		}

		e := &domain.LedgerEntry{
			ID:             uuid.New(),
			WalletID:       wallet.ID,
			Type:           req.Type,
			Amount:         req.Amount,
			RunningBalance: newBalance,
			Category:       req.Category,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
			CreatedAt:      now,
		}
		e.IntegrityHash = s.hasher.Hash(e)

		if err := s.entries.Create(ctx, tx, e); err != nil {
			return err
		}
		if err := s.wallets.UpdateBalance(ctx, tx, wallet.ID, newBalance, now); err != nil {
			return err
		}

		persisted, err := s.wallets.GetByOwnerIDTx(ctx, tx, req.OwnerID)
		if err != nil {
			return err
		}
		if persisted == nil || !persisted.Balance.Equal(e.RunningBalance) {
			stored := "<missing>"
			if persisted != nil {
				stored = domain.CanonicalAmount(persisted.Balance)
			}
			return apperror.ErrLedgerInconsistency(fmt.Errorf(
				"wallet %s balance %s does not match running balance %s",
				wallet.ID, stored, domain.CanonicalAmount(e.RunningBalance)))
		}

		entry = e
		return nil
	})
	if err != nil {
		mapped := s.mapError(err)
		if apperror.HasCode(mapped, apperror.CodeLedgerInconsistency) {
			s.reportInconsistency(ctx, req, mapped)
		}
		return nil, mapped
	}

	if frozen != nil {
		s.onFrozen(ctx, frozen)
		return nil, apperror.ErrFraudSuspected()
	}

	if s.idempCache != nil {
		if err := s.idempCache.Mark(ctx, req.IdempotencyKey, s.idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache idempotency key")
		}
	}
	s.events.emit(ctx, EventEntryRecorded, entry.WalletID, entryRecorded(req.OwnerID, entry))

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("wallet_id", entry.WalletID.String()).
		Str("type", string(entry.Type)).
		Str("amount", domain.CanonicalAmount(entry.Amount)).
		Str("running_balance", domain.CanonicalAmount(entry.RunningBalance)).
		Int64("sequence", entry.Sequence).
		Msg("ledger entry recorded")

	return entry, nil
}

// cachedDuplicate resolves a key already marked in the cache. A wallet
// that is no longer active reports its status ahead of the replay.
func (s *ledgerService) cachedDuplicate(ctx context.Context, ownerID string) error {
	w, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("wallet status lookup failed on cached idempotency key")
	} else if w != nil && !w.IsActive() {
		return apperror.ErrWalletNotActive(string(w.Status))
	}
	return apperror.ErrDuplicateTransaction()
}

func (s *ledgerService) validate(req *ports.RecordTransactionRequest) error {
	ownerID, err := normalizeOwnerID(req.OwnerID)
	if err != nil {
		return err
	}
	req.OwnerID = ownerID

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return apperror.InvalidInput(capitalize(err.Error()))
	}
	req.Amount = req.Amount.Round(domain.MoneyScale)

	if !req.Type.Valid() {
		return apperror.InvalidInput("Transaction type must be CREDIT or DEBIT")
	}

	if req.IdempotencyKey == "" {
		return apperror.InvalidInput("Idempotency key is required")
	}
	if len(req.IdempotencyKey) > domain.MaxIdempotencyKeyLength {
		return apperror.InvalidInput(fmt.Sprintf("Idempotency key must be at most %d characters", domain.MaxIdempotencyKeyLength))
	}

	req.Category = domain.Category(strings.TrimSpace(string(req.Category)))
	if req.Category == "" {
		req.Category = domain.CategorySystemAdjustment
	}
	if len(req.Category) > domain.MaxCategoryLength {
		return apperror.InvalidInput(fmt.Sprintf("Category must be at most %d characters", domain.MaxCategoryLength))
	}
	return nil
}

func normalizeOwnerID(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", apperror.InvalidInput("Owner id is required")
	}
	if len(ownerID) > MaxOwnerIDLength {
		return "", apperror.InvalidInput(fmt.Sprintf("Owner id must be at most %d characters", MaxOwnerIDLength))
	}
	return ownerID, nil
}

// mapError converts storage failures into API errors. AppErrors raised
// inside the transaction pass through unchanged.
func (s *ledgerService) mapError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ports.ErrLockNotAvailable), errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrLockTimeout(err)
	case errors.Is(err, ports.ErrDuplicateIdempotencyKey):
		return apperror.ErrDuplicateTransaction()
	default:
		s.log.Error().Err(err).Msg("ledger storage failure")
		return apperror.ErrDatabaseError(err)
	}
}

func (s *ledgerService) onFrozen(ctx context.Context, w *domain.Wallet) {
	s.log.Warn().
		Str("wallet_id", w.ID.String()).
		Str("owner_id", w.OwnerID).
		Msg("velocity limit exceeded, wallet frozen")

	if s.audit != nil {
		walletID := w.ID
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			WalletID:     &walletID,
			Action:       domain.AuditActionWalletFrozen,
			ResourceType: "wallet",
			ResourceID:   w.ID.String(),
			Details:      fmt.Sprintf(`{"reason":"velocity","window_seconds":%d,"threshold":%d}`, int(s.fraud.window.Seconds()), s.fraud.threshold),
			CreatedAt:    w.LastUpdated,
		})
	}

	s.events.emit(ctx, EventWalletFrozen, w.ID, WalletFrozenData{
		WalletID: w.ID,
		OwnerID:  w.OwnerID,
		Balance:  w.Balance,
		Reason:   "velocity",
	})
}

func (s *ledgerService) reportInconsistency(ctx context.Context, req ports.RecordTransactionRequest, err error) {
	s.log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("ledger inconsistency, transaction rolled back")
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionLedgerInconsistency,
		ResourceType: "wallet",
		ResourceID:   req.OwnerID,
		Details:      fmt.Sprintf(`{"idempotency_key":%q}`, req.IdempotencyKey),
		CreatedAt:    s.now(),
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

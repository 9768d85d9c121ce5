package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type reconciliationService struct {
	wallets    ports.WalletRepository
	entries    ports.EntryRepository
	transactor ports.Transactor
	pool       *VerificationPool
	audit      ports.AuditService
	log        zerolog.Logger
}

// NewReconciliationService creates the full-history auditor. audit may be nil.
func NewReconciliationService(
	wallets ports.WalletRepository,
	entries ports.EntryRepository,
	transactor ports.Transactor,
	pool *VerificationPool,
	audit ports.AuditService,
	log zerolog.Logger,
) ports.ReconciliationService {
	return &reconciliationService{
		wallets:    wallets,
		entries:    entries,
		transactor: transactor,
		pool:       pool,
		audit:      audit,
		log:        log,
	}
}

// Reconcile replays a wallet's entries from a consistent snapshot and checks
// that the stored balance equals the sum of signed amounts, that every
// running balance follows from its predecessor, and that every hash matches.
func (s *reconciliationService) Reconcile(ctx context.Context, ownerID string) (*domain.AuditReport, error) {
	ownerID, err := normalizeOwnerID(ownerID)
	if err != nil {
		return nil, err
	}

	var (
		wallet  *domain.Wallet
		entries []domain.LedgerEntry
	)
	err = s.transactor.WithinReadOnlyTx(ctx, func(tx pgx.Tx) error {
		w, err := s.wallets.GetByOwnerIDTx(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if w == nil {
			return apperror.ErrNotFound("Wallet")
		}
		wallet = w
		entries, err = s.entries.ListByWallet(ctx, tx, w.ID)
		return err
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeNotFound) {
			return nil, err
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	report := &domain.AuditReport{
		WalletID:        wallet.ID,
		OwnerID:         wallet.OwnerID,
		EntryCount:      len(entries),
		StoredBalance:   wallet.Balance,
		ComputedBalance: decimal.Zero,
	}

	prev := decimal.Zero
	for i := range entries {
		e := &entries[i]
		report.ComputedBalance = report.ComputedBalance.Add(e.SignedAmount())
		if !domain.Apply(prev, e.Type, e.Amount).Equal(e.RunningBalance) {
			report.BrokenChain = append(report.BrokenChain, e.ID)
		}
		prev = e.RunningBalance
	}

	verdicts, err := s.pool.VerifyAll(ctx, entries)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	for i, ok := range verdicts {
		if !ok {
			report.Tampered = append(report.Tampered, entries[i].ID)
		}
	}

	if !report.Consistent() {
		s.reportFailure(ctx, report)
	}
	return report, nil
}

func (s *reconciliationService) reportFailure(ctx context.Context, r *domain.AuditReport) {
	s.log.Error().
		Str("wallet_id", r.WalletID.String()).
		Str("stored_balance", domain.CanonicalAmount(r.StoredBalance)).
		Str("computed_balance", domain.CanonicalAmount(r.ComputedBalance)).
		Int("broken_chain", len(r.BrokenChain)).
		Int("tampered", len(r.Tampered)).
		Msg("reconciliation failed")

	if s.audit == nil {
		return
	}
	walletID := r.WalletID
	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		WalletID:     &walletID,
		Action:       domain.AuditActionReconciliation,
		ResourceType: "wallet",
		ResourceID:   r.WalletID.String(),
		Details: fmt.Sprintf(`{"stored_balance":%q,"computed_balance":%q,"broken_chain":%d,"tampered":%d}`,
			domain.CanonicalAmount(r.StoredBalance), domain.CanonicalAmount(r.ComputedBalance),
			len(r.BrokenChain), len(r.Tampered)),
		CreatedAt: time.Now().UTC(),
	})
}

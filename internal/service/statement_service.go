package service

import (
	"context"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	DefaultStatementLimit = 10
	MaxStatementLimit     = 100
)

type statementService struct {
	wallets      ports.WalletRepository
	entries      ports.EntryRepository
	pool         *VerificationPool
	defaultLimit int
	log          zerolog.Logger
}

// NewStatementService creates the statement builder. defaultLimit applies
// when the caller passes a non-positive limit.
func NewStatementService(
	wallets ports.WalletRepository,
	entries ports.EntryRepository,
	pool *VerificationPool,
	defaultLimit int,
	log zerolog.Logger,
) ports.StatementService {
	if defaultLimit <= 0 || defaultLimit > MaxStatementLimit {
		defaultLimit = DefaultStatementLimit
	}
	return &statementService{
		wallets:      wallets,
		entries:      entries,
		pool:         pool,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// GetStatement returns the wallet's balance and most recent entries, each
// tagged with its integrity verdict.
func (s *statementService) GetStatement(ctx context.Context, ownerID string, limit int) (*domain.Statement, error) {
	ownerID, err := normalizeOwnerID(ownerID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxStatementLimit {
		limit = MaxStatementLimit
	}

	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	entries, total, err := s.entries.ListRecent(ctx, wallet.ID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	verdicts, err := s.pool.VerifyAll(ctx, entries)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	lines := make([]domain.StatementLine, len(entries))
	compromised := 0
	for i := range entries {
		lines[i] = domain.StatementLine{LedgerEntry: entries[i], Integrity: domain.IntegrityVerified}
		if !verdicts[i] {
			lines[i].Integrity = domain.IntegrityCompromised
			compromised++
		}
	}
	if compromised > 0 {
		s.log.Error().
			Str("wallet_id", wallet.ID.String()).
			Int("compromised", compromised).
			Msg("statement contains tampered entries")
	}

	return &domain.Statement{
		OwnerID: wallet.OwnerID,
		Balance: wallet.Balance,
		Status:  wallet.Status,
		Entries: lines,
		Total:   total,
	}, nil
}

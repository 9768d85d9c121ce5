package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, owner_id, balance::text, status, created_at, last_updated`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
	now  func() time.Time
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// GetOrCreate inserts a zero-balance ACTIVE wallet unless one already exists
// for ownerID, then reads it back. Concurrent callers converge on one row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	w := domain.NewWallet(ownerID, r.now())

	query := `INSERT INTO wallets (id, owner_id, balance, status, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, domain.CanonicalAmount(w.Balance), string(w.Status),
		w.CreatedAt, w.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	existing, err := r.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet for owner %q vanished after upsert", ownerID)
	}
	return existing, nil
}

// GetByOwnerID fetches a wallet by owner (non-locking read).
func (r *WalletRepo) GetByOwnerID(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	return r.GetByOwnerIDTx(ctx, nil, ownerID)
}

// GetByOwnerIDTx fetches a wallet by owner inside tx without locking it.
func (r *WalletRepo) GetByOwnerIDTx(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`

	w, err := scanWallet(on(r.pool, tx).QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// GetByOwnerIDForUpdate fetches a wallet by owner with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, translate(fmt.Errorf("lock wallet: %w", err))
	}
	return w, nil
}

// UpdateBalance sets the wallet balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	query := `UPDATE wallets SET balance = $1, last_updated = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, domain.CanonicalAmount(balance), at, walletID)
	if err != nil {
		return translate(fmt.Errorf("update wallet balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// UpdateStatus sets the wallet status within a transaction.
func (r *WalletRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus, at time.Time) error {
	query := `UPDATE wallets SET status = $1, last_updated = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, string(status), at, walletID)
	if err != nil {
		return translate(fmt.Errorf("update wallet status: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// ListOwnerIDs returns every wallet owner, oldest wallet first.
func (r *WalletRepo) ListOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT owner_id FROM wallets ORDER BY created_at, owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list wallet owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan wallet owners: %w", err)
	}
	return owners, nil
}

// scanWallet returns nil, nil when the row does not exist.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w       domain.Wallet
		balance string
		status  string
	)
	err := row.Scan(&w.ID, &w.OwnerID, &balance, &status, &w.CreatedAt, &w.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	w.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	w.Status = domain.WalletStatus(status)
	return &w, nil
}

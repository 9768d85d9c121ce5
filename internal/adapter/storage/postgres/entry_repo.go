package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const entryColumns = `id, wallet_id, sequence, entry_type, amount::text, running_balance::text, ` +
	`category, idempotency_key, integrity_hash, metadata, created_at`

// EntryRepo implements ports.EntryRepository. Rows are insert-only.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create inserts a ledger entry within a transaction and records the
// store-assigned sequence on e.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO ledger_entries
		(id, wallet_id, entry_type, amount, running_balance, category, idempotency_key, integrity_hash, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING sequence`

	err = tx.QueryRow(ctx, query,
		e.ID, e.WalletID, string(e.Type),
		domain.CanonicalAmount(e.Amount), domain.CanonicalAmount(e.RunningBalance),
		string(e.Category), e.IdempotencyKey, e.IntegrityHash, meta, e.CreatedAt,
	).Scan(&e.Sequence)
	if err != nil {
		return translate(fmt.Errorf("insert ledger entry: %w", err))
	}
	return nil
}

// GetByID fetches a committed entry by id.
func (r *EntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ExistsByIdempotencyKey reports whether any wallet already used key.
func (r *EntryRepo) ExistsByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (bool, error) {
	var exists bool
	err := on(r.pool, tx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return exists, nil
}

// CountSince counts the wallet's entries with created_at >= since.
func (r *EntryRepo) CountSince(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := on(r.pool, tx).QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1 AND created_at >= $2`,
		walletID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent entries: %w", err)
	}
	return n, nil
}

// ListRecent returns the newest entries of a wallet and its total entry count.
func (r *EntryRepo) ListRecent(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, sequence DESC
		LIMIT $2`

	entries, err := r.list(ctx, r.pool, query, walletID, limit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListByWallet returns every entry of the wallet in commit order.
func (r *EntryRepo) ListByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY sequence ASC`

	return r.list(ctx, on(r.pool, tx), query, walletID)
}

func (r *EntryRepo) list(ctx context.Context, q querier, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e                      domain.LedgerEntry
		entryType, category    string
		amount, runningBalance string
		meta                   []byte
	)
	err := row.Scan(
		&e.ID, &e.WalletID, &e.Sequence, &entryType, &amount, &runningBalance,
		&category, &e.IdempotencyKey, &e.IntegrityHash, &meta, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if e.RunningBalance, err = decimal.NewFromString(runningBalance); err != nil {
		return nil, fmt.Errorf("parse running balance %q: %w", runningBalance, err)
	}
	e.Type = domain.EntryType(entryType)
	e.Category = domain.Category(category)

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &e, nil
}

func marshalMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

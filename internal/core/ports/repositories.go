package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Storage-level sentinels. Adapters translate driver errors into these so
// services can map them without knowing the backend.
var (
	// ErrLockNotAvailable means the wallet row lock could not be taken in time.
	ErrLockNotAvailable = errors.New("lock not available")
	// ErrDuplicateIdempotencyKey means the unique idempotency index rejected an insert.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks; the ForUpdate
// variant takes the per-wallet row lock.
type WalletRepository interface {
	// GetOrCreate returns the owner's wallet, inserting a zero-balance ACTIVE
	// one if none exists. Safe under concurrent callers.
	GetOrCreate(ctx context.Context, ownerID string) (*domain.Wallet, error)
	// GetByOwnerID returns nil, nil when the owner has no wallet.
	GetByOwnerID(ctx context.Context, ownerID string) (*domain.Wallet, error)
	GetByOwnerIDTx(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error)
	GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, at time.Time) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus, at time.Time) error
	ListOwnerIDs(ctx context.Context) ([]string, error)
}

// EntryRepository defines persistence operations for ledger entries.
// Entries are append-only: there is no update or delete.
type EntryRepository interface {
	// Create inserts e and sets e.Sequence. A reused idempotency key yields
	// ErrDuplicateIdempotencyKey.
	Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	// GetByID returns nil, nil when no entry has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	ExistsByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (bool, error)
	// CountSince counts the wallet's entries created at or after since.
	CountSince(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int, error)
	// ListRecent returns up to limit entries newest first, and the wallet's total entry count.
	ListRecent(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, int64, error)
	// ListByWallet returns every entry of the wallet in commit order.
	ListByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]domain.LedgerEntry, error)
}

// AuditRepository persists security audit events.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Transactor runs a function inside one atomic database unit. The unit
// commits when fn returns nil and rolls back on error or panic; all locks
// taken inside are released on every exit path.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	// WithinReadOnlyTx runs fn against a consistent read-only snapshot.
	WithinReadOnlyTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntegrityHasher computes the tamper-evidence digest of an entry.
type IntegrityHasher interface {
	Hash(e *domain.LedgerEntry) string
}

// TokenService handles JWT token operations for service callers.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path). The
// database unique index stays authoritative.
type IdempotencyCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// EventPublisher delivers post-commit domain events. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the single writer of wallets and ledger entries.
type LedgerService interface {
	RecordTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.LedgerEntry, error)
	GetOrCreateWallet(ctx context.Context, ownerID string) (*domain.Wallet, error)
}

// RecordTransactionRequest holds the input of one credit or debit.
type RecordTransactionRequest struct {
	OwnerID        string
	Amount         decimal.Decimal
	Type           domain.EntryType
	Category       domain.Category
	IdempotencyKey string
	Metadata       domain.Metadata
}

// IntegrityVerifier re-checks stored entries against their digests.
type IntegrityVerifier interface {
	Verify(ctx context.Context, entryID uuid.UUID) (bool, error)
	VerifyEntry(ctx context.Context, e *domain.LedgerEntry) bool
}

// StatementService builds the owner-facing wallet view.
type StatementService interface {
	GetStatement(ctx context.Context, ownerID string, limit int) (*domain.Statement, error)
}

// ReconciliationService audits a wallet's full history.
type ReconciliationService interface {
	Reconcile(ctx context.Context, ownerID string) (*domain.AuditReport, error)
}

// AuditService records security events without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// HealthChecker checks external dependency health.
type HealthChecker interface {
	// Ping verifies connectivity. Returns nil if healthy.
	Ping(ctx context.Context) error
	// Name returns the dependency name (e.g., "postgresql", "redis").
	Name() string
}

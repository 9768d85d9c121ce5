package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

const integrityKeyInfo = "wallet-ledger integrity v1"

// canonicalEntry is the pipe-joined string every integrity digest covers.
func canonicalEntry(e *domain.LedgerEntry) string {
	return strings.Join([]string{
		e.ID.String(),
		e.WalletID.String(),
		string(e.Type),
		domain.CanonicalAmount(e.Amount),
		domain.CanonicalAmount(e.RunningBalance),
		e.IdempotencyKey,
	}, "|")
}

// SHA256Hasher computes the plain SHA-256 digest of an entry. Anyone with
// write access to the store can recompute it.
type SHA256Hasher struct{}

// NewSHA256Hasher creates an unkeyed hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Hash returns the lowercase hex digest of the entry's canonical form.
func (SHA256Hasher) Hash(e *domain.LedgerEntry) string {
	sum := sha256.Sum256([]byte(canonicalEntry(e)))
	return hex.EncodeToString(sum[:])
}

// HMACHasher keys the digest with a secret derived through HKDF, so a
// tamperer who lacks the secret cannot forge a matching hash.
type HMACHasher struct {
	key []byte
}

// NewHMACHasher derives a 32-byte signing key from secret.
func NewHMACHasher(secret string) (*HMACHasher, error) {
	if secret == "" {
		return nil, fmt.Errorf("integrity secret must not be empty")
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(integrityKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving integrity key: %w", err)
	}
	return &HMACHasher{key: key}, nil
}

// Hash returns the lowercase hex HMAC-SHA256 of the entry's canonical form.
func (h *HMACHasher) Hash(e *domain.LedgerEntry) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(canonicalEntry(e)))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewIntegrityHasher returns the keyed hasher when secret is set and the
// plain SHA-256 hasher otherwise.
func NewIntegrityHasher(secret string) (ports.IntegrityHasher, error) {
	if secret == "" {
		return NewSHA256Hasher(), nil
	}
	return NewHMACHasher(secret)
}

type integrityService struct {
	entries ports.EntryRepository
	hasher  ports.IntegrityHasher
	audit   ports.AuditService
	log     zerolog.Logger
}

// NewIntegrityService creates the entry verifier. audit may be nil.
func NewIntegrityService(
	entries ports.EntryRepository,
	hasher ports.IntegrityHasher,
	audit ports.AuditService,
	log zerolog.Logger,
) ports.IntegrityVerifier {
	return &integrityService{
		entries: entries,
		hasher:  hasher,
		audit:   audit,
		log:     log,
	}
}

// Verify loads an entry and recomputes its digest.
func (s *integrityService) Verify(ctx context.Context, entryID uuid.UUID) (bool, error) {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return false, apperror.ErrDatabaseError(err)
	}
	if e == nil {
		return false, apperror.ErrNotFound("Ledger entry")
	}
	return s.VerifyEntry(ctx, e), nil
}

// VerifyEntry reports whether the stored hash matches the entry's fields.
// A mismatch is logged and audited; the entry itself is never modified.
func (s *integrityService) VerifyEntry(ctx context.Context, e *domain.LedgerEntry) bool {
	expected := s.hasher.Hash(e)
	if hmac.Equal([]byte(expected), []byte(e.IntegrityHash)) {
		return true
	}

	s.log.Error().
		Str("entry_id", e.ID.String()).
		Str("wallet_id", e.WalletID.String()).
		Msg("integrity hash mismatch: ledger entry has been tampered with")

	if s.audit != nil {
		walletID := e.WalletID
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			WalletID:     &walletID,
			Action:       domain.AuditActionTamperDetected,
			ResourceType: "ledger_entry",
			ResourceID:   e.ID.String(),
			Details:      fmt.Sprintf(`{"stored_hash":%q,"expected_hash":%q}`, e.IntegrityHash, expected),
			CreatedAt:    time.Now().UTC(),
		})
	}
	return false
}

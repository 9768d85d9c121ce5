// Package memory is an in-process implementation of the ledger storage
// ports. It honours the same contract as the PostgreSQL adapter: per-wallet
// locks with a bounded wait, writes staged inside a transaction and applied
// atomically on commit, a unique idempotency index and a non-negative
// balance check.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds wallets, entries and audit logs.
type Store struct {
	mu       sync.RWMutex
	wallets  map[uuid.UUID]domain.Wallet
	owners   map[string]uuid.UUID
	entries  []domain.LedgerEntry
	byID     map[uuid.UUID]int
	keys     map[string]struct{}
	audit    []domain.AuditLog
	sequence int64

	locksMu     sync.Mutex
	locks       map[uuid.UUID]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

// New creates an empty store. lockTimeout bounds how long a transaction
// waits for a wallet lock; zero waits until the context ends.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		owners:      make(map[string]uuid.UUID),
		byID:        make(map[uuid.UUID]int),
		keys:        make(map[string]struct{}),
		locks:       make(map[uuid.UUID]chan struct{}),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Tx is the store's transaction handle. It satisfies pgx.Tx through the
// embedded interface so it can travel through the storage ports; only the
// store's own methods may be called on it.
type Tx struct {
	pgx.Tx

	store    *Store
	readOnly bool
	held     []uuid.UUID
	wallets  map[uuid.UUID]domain.Wallet
	entries  []domain.LedgerEntry
}

// Commit is a no-op; commit happens when the WithinTx closure returns nil.
func (t *Tx) Commit(context.Context) error { return nil }

// Rollback is a no-op; see Commit.
func (t *Tx) Rollback(context.Context) error { return nil }

// --- Transactor ---

// WithinTx runs fn and applies its staged writes atomically if it returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx := &Tx{store: s, wallets: make(map[uuid.UUID]domain.Wallet)}
	defer func() {
		if r := recover(); r != nil {
			s.release(tx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		s.release(tx)
		return err
	}
	defer s.release(tx)
	return s.commit(tx)
}

// WithinReadOnlyTx runs fn against a frozen view: commits wait until fn returns.
func (s *Store) WithinReadOnlyTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{store: s, readOnly: true})
}

func (s *Store) commit(tx *Tx) error {
	if tx.readOnly || (len(tx.wallets) == 0 && len(tx.entries) == 0) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range tx.entries {
		if _, dup := s.keys[e.IdempotencyKey]; dup {
			return fmt.Errorf("commit tx: %w", ports.ErrDuplicateIdempotencyKey)
		}
	}
	for _, w := range tx.wallets {
		if w.Balance.IsNegative() {
			return fmt.Errorf("commit tx: wallet %s balance would be negative", w.ID)
		}
	}

	for id, w := range tx.wallets {
		s.wallets[id] = w
	}
	for _, e := range tx.entries {
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
		s.keys[e.IdempotencyKey] = struct{}{}
	}
	return nil
}

// --- per-wallet locks ---

func (s *Store) lockChan(id uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, tx *Tx, id uuid.UUID) error {
	for _, h := range tx.held {
		if h == id {
			return nil
		}
	}

	ch := s.lockChan(id)
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		tx.held = append(tx.held, id)
		return nil
	case <-timeout:
		return fmt.Errorf("lock wallet %s: %w", id, ports.ErrLockNotAvailable)
	case <-ctx.Done():
		return fmt.Errorf("lock wallet %s: %w", id, ctx.Err())
	}
}

func (s *Store) release(tx *Tx) {
	for _, id := range tx.held {
		<-s.lockChan(id)
	}
	tx.held = nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errForeignTx
	}
	return t, nil
}

// --- ports.WalletRepository ---

// Wallets returns a WalletRepository view of the store.
func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

// Entries returns an EntryRepository view of the store.
func (s *Store) Entries() *EntryRepo { return &EntryRepo{s: s} }

// Audit returns an AuditRepository view of the store.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func (r *WalletRepo) GetOrCreate(_ context.Context, ownerID string) (*domain.Wallet, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.owners[ownerID]; ok {
		w := s.wallets[id]
		return &w, nil
	}
	w := domain.NewWallet(ownerID, s.now())
	s.wallets[w.ID] = *w
	s.owners[ownerID] = w.ID
	cp := *w
	return &cp, nil
}

func (r *WalletRepo) GetByOwnerID(_ context.Context, ownerID string) (*domain.Wallet, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByOwner(ownerID, nil), nil
}

// GetByOwnerIDTx reads the wallet as seen by tx, including its staged writes.
func (r *WalletRepo) GetByOwnerIDTx(_ context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if t.readOnly {
		// The read-only transaction already holds the read lock.
		return r.s.walletByOwner(ownerID, t), nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.walletByOwner(ownerID, t), nil
}

func (r *WalletRepo) GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID string) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	s := r.s

	s.mu.RLock()
	id, ok := s.owners[ownerID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if err := s.acquire(ctx, t, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByOwner(ownerID, t), nil
}

func (r *WalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, at time.Time) error {
	return r.stage(tx, walletID, func(w *domain.Wallet) {
		w.Balance = balance
		w.LastUpdated = at
	})
}

func (r *WalletRepo) UpdateStatus(_ context.Context, tx pgx.Tx, walletID uuid.UUID, status domain.WalletStatus, at time.Time) error {
	return r.stage(tx, walletID, func(w *domain.Wallet) {
		w.Status = status
		w.LastUpdated = at
	})
}

func (r *WalletRepo) ListOwnerIDs(_ context.Context) ([]string, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets := make([]domain.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].OwnerID < wallets[j].OwnerID
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})

	owners := make([]string, len(wallets))
	for i, w := range wallets {
		owners[i] = w.OwnerID
	}
	return owners, nil
}

func (r *WalletRepo) stage(tx pgx.Tx, walletID uuid.UUID, mutate func(w *domain.Wallet)) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if t.readOnly {
		return errors.New("memory: write in read-only transaction")
	}

	w, ok := t.wallets[walletID]
	if !ok {
		r.s.mu.RLock()
		w, ok = r.s.wallets[walletID]
		r.s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("wallet not found: %s", walletID)
		}
	}
	mutate(&w)
	t.wallets[walletID] = w
	return nil
}

// walletByOwner must be called with s.mu held.
func (s *Store) walletByOwner(ownerID string, tx *Tx) *domain.Wallet {
	id, ok := s.owners[ownerID]
	if !ok {
		return nil
	}
	if tx != nil {
		if w, staged := tx.wallets[id]; staged {
			return &w
		}
	}
	w := s.wallets[id]
	return &w
}

// --- ports.EntryRepository ---

// EntryRepo implements ports.EntryRepository.
type EntryRepo struct{ s *Store }

func (r *EntryRepo) Create(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if t.readOnly {
		return errors.New("memory: write in read-only transaction")
	}
	s := r.s

	s.mu.Lock()
	if _, dup := s.keys[e.IdempotencyKey]; dup {
		s.mu.Unlock()
		return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicateIdempotencyKey)
	}
	s.sequence++
	e.Sequence = s.sequence
	s.mu.Unlock()

	for _, staged := range t.entries {
		if staged.IdempotencyKey == e.IdempotencyKey {
			return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicateIdempotencyKey)
		}
	}
	t.entries = append(t.entries, cloneEntry(*e))
	return nil
}

func (r *EntryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	e := cloneEntry(s.entries[i])
	return &e, nil
}

func (r *EntryRepo) ExistsByIdempotencyKey(_ context.Context, tx pgx.Tx, key string) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}
	for _, e := range t.entries {
		if e.IdempotencyKey == key {
			return true, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.keys[key]
	return ok, nil
}

func (r *EntryRepo) CountSince(_ context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range t.entries {
		if e.WalletID == walletID && !e.CreatedAt.Before(since) {
			n++
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.entries {
		if e.WalletID == walletID && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *EntryRepo) ListRecent(_ context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.RLock()
	all := r.s.walletEntries(walletID)
	r.s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Sequence > all[j].Sequence
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *EntryRepo) ListByWallet(_ context.Context, tx pgx.Tx, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	if t, err := asTx(tx); err == nil && t.readOnly {
		return r.s.walletEntries(walletID), nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.walletEntries(walletID), nil
}

// walletEntries returns copies in commit order; s.mu must be held.
func (s *Store) walletEntries(walletID uuid.UUID) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.WalletID == walletID {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

// Tamper overwrites a committed entry in place, bypassing every invariant.
// It exists to exercise integrity verification.
func (s *Store) Tamper(id uuid.UUID, mutate func(e *domain.LedgerEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("entry not found: %s", id)
	}
	mutate(&s.entries[i])
	return nil
}

// SetWalletBalance overwrites a wallet balance outside the ledger.
// It exists to exercise reconciliation.
func (s *Store) SetWalletBalance(ownerID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.owners[ownerID]
	if !ok {
		return fmt.Errorf("wallet not found for owner %q", ownerID)
	}
	w := s.wallets[id]
	w.Balance = balance
	s.wallets[id] = w
	return nil
}

func cloneEntry(e domain.LedgerEntry) domain.LedgerEntry {
	if e.Metadata != nil {
		m := make(domain.Metadata, len(e.Metadata))
		for k, v := range e.Metadata {
			m[k] = v
		}
		e.Metadata = m
	}
	return e
}

// --- ports.AuditRepository ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func (r *AuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// AuditLogs returns a copy of every recorded audit event.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audit...)
}

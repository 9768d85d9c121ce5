package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.Transactor on top of a pgx pool.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// NewTransactor creates a Transactor. A positive lockTimeout bounds every
// row-lock wait inside WithinTx via SET LOCAL lock_timeout.
func NewTransactor(pool Pool, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// WithinTx runs fn in a read-write transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return t.run(ctx, pgx.TxOptions{}, t.lockTimeout, fn)
}

// WithinReadOnlyTx runs fn in a REPEATABLE READ, READ ONLY transaction so
// every read sees the same committed snapshot.
func (t *Transactor) WithinReadOnlyTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return t.run(ctx, opts, 0, fn)
}

func (t *Transactor) run(ctx context.Context, opts pgx.TxOptions, lockTimeout time.Duration, fn func(tx pgx.Tx) error) error {
	tx, err := t.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// Rollback must run even when ctx is already cancelled.
	rbCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(rbCtx)
			panic(r)
		}
	}()

	if lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(rbCtx)
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

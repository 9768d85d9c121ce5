package postgres

import (
	"context"
	"errors"
)

// HealthCheck implements ports.HealthChecker for PostgreSQL.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks PostgreSQL connectivity and that the ledger schema is migrated.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var present bool
	err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.ledger_entries') IS NOT NULL`).Scan(&present)
	if err != nil {
		return err
	}
	if !present {
		return errors.New("ledger schema not migrated")
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}

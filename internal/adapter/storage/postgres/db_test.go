package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "testuser",
		Password:        "testpass",
		DBName:          "testdb",
		SSLMode:         "disable",
		MaxConns:        20,
		MinConns:        5,
		ConnMaxLifetime: 30 * time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), poolCfg.MaxConns)
	assert.Equal(t, int32(5), poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, "testdb", poolCfg.ConnConfig.Database)
	assert.Equal(t, uint16(5432), poolCfg.ConnConfig.Port)
}

func TestPoolConfig_InvalidDSN(t *testing.T) {
	_, err := poolConfig(config.DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "bogus"})
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	lockErr := &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	uniqueErr := &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_idempotency_key_key"}
	otherErr := &pgconn.PgError{Code: "23514"}

	got := translate(fmt.Errorf("lock wallet: %w", lockErr))
	assert.True(t, errors.Is(got, ports.ErrLockNotAvailable))
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(got, &pgErr), "original error stays in the chain")

	assert.True(t, errors.Is(translate(uniqueErr), ports.ErrDuplicateIdempotencyKey))

	got = translate(otherErr)
	assert.False(t, errors.Is(got, ports.ErrLockNotAvailable))
	assert.False(t, errors.Is(got, ports.ErrDuplicateIdempotencyKey))

	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}

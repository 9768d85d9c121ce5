package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func walletColumnNames() []string {
	return []string{"id", "owner_id", "balance", "status", "created_at", "last_updated"}
}

func walletRow(id uuid.UUID, owner, balance string, status domain.WalletStatus, at time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(id, owner, balance, string(status), at, at)
}

func TestWalletRepo_GetOrCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	id := uuid.New()

	mock.ExpectExec("ON CONFLICT \\(owner_id\\) DO NOTHING").
		WithArgs(pgxmock.AnyArg(), "user-1", "0.00", "ACTIVE", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("user-1").
		WillReturnRows(walletRow(id, "user-1", "0.00", domain.WalletStatusActive, now))

	w, err := repo.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, id, w.ID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetOrCreate_ExistingWalletKeepsState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), "user-1", "0.00", "ACTIVE", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("user-1").
		WillReturnRows(walletRow(id, "user-1", "42.50", domain.WalletStatusFrozen, now))

	w, err := repo.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "42.50", w.Balance.StringFixed(2))
	assert.Equal(t, domain.WalletStatusFrozen, w.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	w, err := repo.GetByOwnerID(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, w)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id = .+ FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(walletRow(id, "user-1", "100.00", domain.WalletStatusActive, now))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	w, err := repo.GetByOwnerIDForUpdate(context.Background(), tx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(100)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerIDForUpdate_LockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id = .+ FOR UPDATE").
		WithArgs("user-1").
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	w, err := repo.GetByOwnerIDForUpdate(context.Background(), tx, "user-1")
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, ports.ErrLockNotAvailable))
}

func TestWalletRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs("30.00", at, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, walletID, decimal.RequireFromString("30"), at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET status").
		WithArgs("FROZEN", at, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, walletID, domain.WalletStatusFrozen, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not found")
}

func TestWalletRepo_ListOwnerIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT owner_id FROM wallets").
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("alice").AddRow("bob"))

	owners, err := repo.ListOwnerIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLog() *domain.AuditLog {
	walletID := uuid.New()
	return &domain.AuditLog{
		ID:           uuid.New(),
		WalletID:     &walletID,
		Action:       domain.AuditActionTamperDetected,
		ResourceType: "ledger_entry",
		ResourceID:   uuid.NewString(),
		Details:      `{"stored_hash":"abc"}`,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := newTestAuditLog()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.WalletID, "TAMPER_DETECTED", "ledger_entry",
			entry.ResourceID, entry.Details, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	entry := newTestAuditLog()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.WalletID, "TAMPER_DETECTED", "ledger_entry",
			entry.ResourceID, entry.Details, entry.CreatedAt).
		WillReturnError(errors.New("connection reset"))

	err = repo.Create(context.Background(), entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit log")
	assert.NoError(t, mock.ExpectationsWereMet())
}

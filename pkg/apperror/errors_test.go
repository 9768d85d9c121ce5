package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_004", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[LED_004] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("LED_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidInput", InvalidInput("bad"), "LED_001", 400},
		{"WalletNotActive", ErrWalletNotActive("FROZEN"), "LED_002", 403},
		{"DuplicateTransaction", ErrDuplicateTransaction(), "LED_003", 409},
		{"InsufficientFunds", ErrInsufficientFunds(), "LED_004", 402},
		{"FraudSuspected", ErrFraudSuspected(), "LED_005", 423},
		{"NotFound", ErrNotFound("Wallet"), "LED_006", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	lockErr := ErrLockTimeout(inner)
	assert.Equal(t, "SYS_002", lockErr.Code)
	assert.Equal(t, 503, lockErr.HTTPStatus)

	incErr := ErrLedgerInconsistency(inner)
	assert.Equal(t, "SYS_003", incErr.Code)
	assert.Equal(t, 500, incErr.HTTPStatus)
}

func TestAuthAndRateLimitErrors(t *testing.T) {
	assert.Equal(t, "AUTH_001", ErrInvalidToken().Code)
	assert.Equal(t, 401, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, "RATE_001", ErrRateLimitExceeded().Code)
	assert.Equal(t, 429, ErrRateLimitExceeded().HTTPStatus)
	assert.Equal(t, "REQ_001", ErrPayloadTooLarge().Code)
	assert.Equal(t, 413, ErrPayloadTooLarge().HTTPStatus)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("recording entry: %w", ErrInsufficientFunds())

	assert.True(t, HasCode(err, CodeInsufficientFunds))
	assert.False(t, HasCode(err, CodeFraudSuspected))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Ledger entry")
	assert.Contains(t, err.Message, "Ledger entry")
	assert.Equal(t, "LED_006", err.Code)
}

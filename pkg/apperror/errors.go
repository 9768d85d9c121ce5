package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Ledger error codes.
const (
	CodeInvalidInput         = "LED_001"
	CodeWalletNotActive      = "LED_002"
	CodeDuplicateTransaction = "LED_003"
	CodeInsufficientFunds    = "LED_004"
	CodeFraudSuspected       = "LED_005"
	CodeNotFound             = "LED_006"

	CodeInternal            = "SYS_001"
	CodeLockTimeout         = "SYS_002"
	CodeLedgerInconsistency = "SYS_003"

	CodeInvalidToken      = "AUTH_001"
	CodeRateLimitExceeded = "RATE_001"
	CodePayloadTooLarge   = "REQ_001"
)

// ---- Ledger Business Logic (LED) ----

// InvalidInput returns a LED_001 validation error.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func ErrWalletNotActive(status string) *AppError {
	return New(CodeWalletNotActive, fmt.Sprintf("Wallet is %s", status), http.StatusForbidden)
}

func ErrDuplicateTransaction() *AppError {
	return New(CodeDuplicateTransaction, "Duplicate transaction", http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrFraudSuspected() *AppError {
	return New(CodeFraudSuspected, "Suspicious activity detected, wallet frozen", http.StatusLocked)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrLedgerInconsistency(err error) *AppError {
	return Wrap(CodeLedgerInconsistency, "Ledger inconsistency detected", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

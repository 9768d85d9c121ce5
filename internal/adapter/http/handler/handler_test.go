package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerMocks struct {
	ledger     *mocks.MockLedgerService
	statements *mocks.MockStatementService
	recon      *mocks.MockReconciliationService
	verifier   *mocks.MockIntegrityVerifier
	tokens     *mocks.MockTokenService
}

// newTestRouter wires the full router with a token service that accepts
// "good_token" for the caller "pricing-service".
func newTestRouter(t *testing.T) (*gin.Engine, handlerMocks) {
	ctrl := gomock.NewController(t)
	m := handlerMocks{
		ledger:     mocks.NewMockLedgerService(ctrl),
		statements: mocks.NewMockStatementService(ctrl),
		recon:      mocks.NewMockReconciliationService(ctrl),
		verifier:   mocks.NewMockIntegrityVerifier(ctrl),
		tokens:     mocks.NewMockTokenService(ctrl),
	}
	m.tokens.EXPECT().Validate("good_token").Return(&ports.TokenClaims{Subject: "pricing-service"}, nil).AnyTimes()
	m.tokens.EXPECT().Validate(gomock.Not("good_token")).Return(nil, errors.New("bad token")).AnyTimes()

	r := SetupRouter(RouterDeps{
		Ledger:         m.ledger,
		Statements:     m.statements,
		Reconciliation: m.recon,
		Verifier:       m.verifier,
		TokenSvc:       m.tokens,
		Logger:         zerolog.Nop(),
	})
	return r, m
}

func doRequest(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good_token")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "missing data in %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func sampleEntry() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       uuid.New(),
		Sequence:       7,
		Type:           domain.EntryTypeDebit,
		Amount:         decimal.RequireFromString("20"),
		RunningBalance: decimal.RequireFromString("30"),
		Category:       domain.CategoryPremiumPurchase,
		IdempotencyKey: "order-1",
		IntegrityHash:  "abc",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Auth ---

func TestRouter_RequiresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodPut, "/api/v1/wallets/user-1", nil, map[string]string{"Authorization": ""})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPut, "/api/v1/wallets/user-1", nil, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, errorCode(t, w))
}

// --- Wallet provisioning ---

func TestProvisionWallet_Success(t *testing.T) {
	r, m := newTestRouter(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	wallet := domain.NewWallet("user-1", now)
	m.ledger.EXPECT().GetOrCreateWallet(gomock.Any(), "user-1").Return(wallet, nil)

	w := doRequest(r, http.MethodPut, "/api/v1/wallets/user-1", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, wallet.ID.String(), data["wallet_id"])
	assert.Equal(t, "0.00", data["balance"])
	assert.Equal(t, "ACTIVE", data["status"])
}

func TestProvisionWallet_ServiceError(t *testing.T) {
	r, m := newTestRouter(t)

	m.ledger.EXPECT().GetOrCreateWallet(gomock.Any(), "user-1").
		Return(nil, apperror.ErrDatabaseError(errors.New("conn refused")))

	w := doRequest(r, http.MethodPut, "/api/v1/wallets/user-1", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "conn refused")
}

// --- Record transaction ---

func TestRecordTransaction_Success(t *testing.T) {
	r, m := newTestRouter(t)

	entry := sampleEntry()
	m.ledger.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.RecordTransactionRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, "user-1", req.OwnerID)
			assert.True(t, decimal.RequireFromString("20.00").Equal(req.Amount))
			assert.Equal(t, domain.EntryTypeDebit, req.Type)
			assert.Equal(t, domain.CategoryPremiumPurchase, req.Category)
			assert.Equal(t, "order-1", req.IdempotencyKey)
			assert.Equal(t, "gold", req.Metadata["plan"])
			return entry, nil
		},
	)

	w := doRequest(r, http.MethodPost, "/api/v1/wallets/user-1/transactions",
		`{"amount":"20.00","type":"DEBIT","category":"PREMIUM_PURCHASE","idempotency_key":"order-1","metadata":{"plan":"gold"}}`, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, entry.ID.String(), data["id"])
	assert.Equal(t, "20.00", data["amount"])
	assert.Equal(t, "30.00", data["running_balance"])
	assert.Equal(t, float64(7), data["sequence"])
}

func TestRecordTransaction_KeyFromHeader(t *testing.T) {
	r, m := newTestRouter(t)

	m.ledger.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.RecordTransactionRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, "hdr-key-1", req.IdempotencyKey)
			return sampleEntry(), nil
		},
	)

	w := doRequest(r, http.MethodPost, "/api/v1/wallets/user-1/transactions",
		`{"amount":5,"type":"CREDIT"}`, map[string]string{HeaderIdempotencyKey: "hdr-key-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRecordTransaction_FreeFormKeys(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    string
	}{
		{"body", `{"amount":5,"type":"CREDIT","idempotency_key":"order#1/2 <retry> & co"}`, nil, "order#1/2 <retry> & co"},
		{"header", `{"amount":5,"type":"CREDIT"}`, map[string]string{HeaderIdempotencyKey: "tenant/42 käse#3"}, "tenant/42 käse#3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRouter(t)

			m.ledger.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req ports.RecordTransactionRequest) (*domain.LedgerEntry, error) {
					assert.Equal(t, tt.want, req.IdempotencyKey)
					return sampleEntry(), nil
				},
			)

			w := doRequest(r, http.MethodPost, "/api/v1/wallets/user-1/transactions", tt.body, tt.headers)
			assert.Equal(t, http.StatusCreated, w.Code)
		})
	}
}

func TestRecordTransaction_InvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
	}{
		{"missing key", `{"amount":5,"type":"CREDIT"}`, nil},
		{"oversized header key", `{"amount":5,"type":"CREDIT"}`, map[string]string{HeaderIdempotencyKey: strings.Repeat("k", 256)}},
		{"control char header key", `{"amount":5,"type":"CREDIT"}`, map[string]string{HeaderIdempotencyKey: "a\x01b"}},
		{"control char body key", `{"amount":5,"type":"CREDIT","idempotency_key":"a\u0007b"}`, nil},
		{"unknown type", `{"amount":5,"type":"REFUND","idempotency_key":"k"}`, nil},
		{"missing type", `{"amount":5,"idempotency_key":"k"}`, nil},
		{"unsafe category", `{"amount":5,"type":"CREDIT","category":"<x>","idempotency_key":"k"}`, nil},
		{"malformed amount", `{"amount":"five","type":"CREDIT","idempotency_key":"k"}`, nil},
		{"not json", `amount=5`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t) // no RecordTransaction expected

			w := doRequest(r, http.MethodPost, "/api/v1/wallets/user-1/transactions", tt.body, tt.headers)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apperror.CodeInvalidInput, errorCode(t, w))
		})
	}
}

func TestRecordTransaction_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, apperror.CodeInsufficientFunds},
		{"fraud", apperror.ErrFraudSuspected(), http.StatusLocked, apperror.CodeFraudSuspected},
		{"frozen", apperror.ErrWalletNotActive("FROZEN"), http.StatusForbidden, apperror.CodeWalletNotActive},
		{"duplicate", apperror.ErrDuplicateTransaction(), http.StatusConflict, apperror.CodeDuplicateTransaction},
		{"lock timeout", apperror.ErrLockTimeout(errors.New("lock")), http.StatusServiceUnavailable, apperror.CodeLockTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRouter(t)
			m.ledger.EXPECT().RecordTransaction(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := doRequest(r, http.MethodPost, "/api/v1/wallets/user-1/transactions",
				`{"amount":"10","type":"DEBIT","idempotency_key":"k-1"}`, nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

// --- Statement ---

func TestGetStatement_Success(t *testing.T) {
	r, m := newTestRouter(t)

	e := sampleEntry()
	m.statements.EXPECT().GetStatement(gomock.Any(), "user-1", 5).Return(&domain.Statement{
		OwnerID: "user-1",
		Balance: decimal.RequireFromString("30"),
		Status:  domain.WalletStatusActive,
		Total:   12,
		Entries: []domain.StatementLine{
			{LedgerEntry: *e, Integrity: domain.IntegrityCompromised},
		},
	}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/wallets/user-1/statement?limit=5", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "30.00", data["balance"])
	assert.Equal(t, float64(12), data["total_entries"])
	entries := data["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "Compromised (Tampered)", entries[0].(map[string]any)["integrity"])
}

func TestGetStatement_DefaultLimit(t *testing.T) {
	r, m := newTestRouter(t)

	m.statements.EXPECT().GetStatement(gomock.Any(), "user-1", 0).Return(&domain.Statement{OwnerID: "user-1"}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/wallets/user-1/statement", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decodeData(t, w)["entries"])
}

func TestGetStatement_InvalidLimit(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, q := range []string{"limit=500", "limit=-1", "limit=abc"} {
		w := doRequest(r, http.MethodGet, "/api/v1/wallets/user-1/statement?"+q, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetStatement_UnknownOwner(t *testing.T) {
	r, m := newTestRouter(t)

	m.statements.EXPECT().GetStatement(gomock.Any(), "ghost", 0).Return(nil, apperror.ErrNotFound("Wallet"))

	w := doRequest(r, http.MethodGet, "/api/v1/wallets/ghost/statement", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Reconcile ---

func TestReconcile_Success(t *testing.T) {
	r, m := newTestRouter(t)

	tampered := uuid.New()
	m.recon.EXPECT().Reconcile(gomock.Any(), "user-1").Return(&domain.AuditReport{
		WalletID:        uuid.New(),
		OwnerID:         "user-1",
		EntryCount:      3,
		StoredBalance:   decimal.RequireFromString("30"),
		ComputedBalance: decimal.RequireFromString("30"),
		Tampered:        []uuid.UUID{tampered},
	}, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/wallets/user-1/reconcile", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, false, data["consistent"])
	assert.Equal(t, []any{tampered.String()}, data["tampered"])
	assert.Equal(t, []any{}, data["broken_chain"])
}

// --- Verify ---

func TestVerifyEntry(t *testing.T) {
	r, m := newTestRouter(t)

	id := uuid.New()
	m.verifier.EXPECT().Verify(gomock.Any(), id).Return(true, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/entries/"+id.String()+"/verify", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, id.String(), data["entry_id"])
	assert.Equal(t, true, data["valid"])
}

func TestVerifyEntry_InvalidID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v1/entries/not-a-uuid/verify", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEntry_NotFound(t *testing.T) {
	r, m := newTestRouter(t)

	id := uuid.New()
	m.verifier.EXPECT().Verify(gomock.Any(), id).Return(false, apperror.ErrNotFound("Ledger entry"))

	w := doRequest(r, http.MethodGet, "/api/v1/entries/"+id.String()+"/verify", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, errorCode(t, w))
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	rd.EXPECT().Name().Return("redis").AnyTimes()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status       string                      `json:"status"`
		Dependencies map[string]dependencyStatus `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["postgresql"].Status)
	assert.Equal(t, "connection refused", resp.Dependencies["redis"].Error)
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

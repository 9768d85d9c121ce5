package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func auditRouter(auditSvc *mocks.MockAuditService, status int) *gin.Engine {
	r := gin.New()
	r.Use(AuditLog(auditSvc))
	handler := func(c *gin.Context) {
		c.Set(CtxCaller, "pricing-service")
		c.JSON(status, gin.H{"ok": true})
	}
	r.PUT("/api/v1/wallets/:owner_id", handler)
	r.POST("/api/v1/wallets/:owner_id/transactions", handler)
	r.GET("/api/v1/wallets/:owner_id/statement", handler)
	return r
}

func TestAuditLog_TransactionSubmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionTransactionSubmitted, log.Action)
			assert.Equal(t, "ledger_entry", log.ResourceType)
			assert.Equal(t, "user-42", log.ResourceID)

			var details map[string]any
			require.NoError(t, json.Unmarshal([]byte(log.Details), &details))
			assert.Equal(t, "pricing-service", details["caller"])
		},
	)

	w := httptest.NewRecorder()
	auditRouter(mockAudit, http.StatusCreated).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/api/v1/wallets/user-42/transactions", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_WalletProvisioned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, log *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionWalletProvisioned, log.Action)
		},
	)

	auditRouter(mockAudit, http.StatusOK).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPut, "/api/v1/wallets/user-42", nil))
}

func TestAuditLog_SkipsGET(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Log call expected.
	mockAudit := mocks.NewMockAuditService(ctrl)
	auditRouter(mockAudit, http.StatusOK).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/api/v1/wallets/user-42/statement", nil))
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	auditRouter(mockAudit, http.StatusPaymentRequired).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/v1/wallets/user-42/transactions", nil))
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		route, method string
		want          domain.AuditAction
	}{
		{"/api/v1/wallets/:owner_id", http.MethodPut, domain.AuditActionWalletProvisioned},
		{"/api/v1/wallets/:owner_id/transactions", http.MethodPost, domain.AuditActionTransactionSubmitted},
		{"/api/v1/wallets/:owner_id/transactions", http.MethodPut, ""},
		{"/health", http.MethodPost, ""},
	}
	for _, tt := range tests {
		got, _ := mapRouteToAction(tt.route, tt.method)
		assert.Equal(t, tt.want, got, "%s %s", tt.method, tt.route)
	}
}

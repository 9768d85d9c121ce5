package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey carries the idempotency key when the body omits it.
const HeaderIdempotencyKey = "Idempotency-Key"

// LedgerHandler exposes the ledger engine to service callers.
type LedgerHandler struct {
	ledgerSvc    ports.LedgerService
	statementSvc ports.StatementService
	reconSvc     ports.ReconciliationService
	verifier     ports.IntegrityVerifier
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(
	ledgerSvc ports.LedgerService,
	statementSvc ports.StatementService,
	reconSvc ports.ReconciliationService,
	verifier ports.IntegrityVerifier,
) *LedgerHandler {
	return &LedgerHandler{
		ledgerSvc:    ledgerSvc,
		statementSvc: statementSvc,
		reconSvc:     reconSvc,
		verifier:     verifier,
	}
}

// ProvisionWallet handles PUT /api/v1/wallets/:owner_id.
func (h *LedgerHandler) ProvisionWallet(c *gin.Context) {
	wallet, err := h.ledgerSvc.GetOrCreateWallet(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}

// GetStatement handles GET /api/v1/wallets/:owner_id/statement.
func (h *LedgerHandler) GetStatement(c *gin.Context) {
	var q dto.StatementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.InvalidInput("limit must be between 1 and 100"))
		return
	}

	stmt, err := h.statementSvc.GetStatement(c.Request.Context(), c.Param("owner_id"), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToStatementResponse(stmt))
}

// RecordTransaction handles POST /api/v1/wallets/:owner_id/transactions.
func (h *LedgerHandler) RecordTransaction(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidInput(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(HeaderIdempotencyKey)
		if key != "" && !dto.IsIdempotencyKey(key) {
			response.Error(c, apperror.InvalidInput("invalid Idempotency-Key header"))
			return
		}
	}
	if key == "" {
		response.Error(c, apperror.InvalidInput("idempotency key is required"))
		return
	}

	entry, err := h.ledgerSvc.RecordTransaction(c.Request.Context(), ports.RecordTransactionRequest{
		OwnerID:        c.Param("owner_id"),
		Amount:         req.Amount,
		Type:           domain.EntryType(req.Type),
		Category:       domain.Category(req.Category),
		IdempotencyKey: key,
		Metadata:       req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToEntryResponse(entry))
}

// Reconcile handles GET /api/v1/wallets/:owner_id/reconcile.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	report, err := h.reconSvc.Reconcile(c.Request.Context(), c.Param("owner_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToReconciliationResponse(report))
}

// VerifyEntry handles GET /api/v1/entries/:entry_id/verify.
func (h *LedgerHandler) VerifyEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("entry_id"))
	if err != nil {
		response.Error(c, apperror.InvalidInput("entry_id must be a UUID"))
		return
	}

	valid, err := h.verifier.Verify(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.VerifyResponse{EntryID: id.String(), Valid: valid})
}

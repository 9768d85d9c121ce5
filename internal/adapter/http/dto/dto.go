package dto

import (
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RecordTransactionRequest is the request body for a credit or debit.
// Amount accepts a JSON number or a decimal string.
type RecordTransactionRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type" binding:"required,oneof=CREDIT DEBIT"`
	Category       string          `json:"category" binding:"omitempty,max=30,safe_id"`
	IdempotencyKey string          `json:"idempotency_key" binding:"omitempty,idempotency_key" sanitize:"-"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
}

// StatementQuery binds the statement query string.
type StatementQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// WalletResponse is the response body for wallet provisioning.
type WalletResponse struct {
	WalletID    string `json:"wallet_id"`
	OwnerID     string `json:"owner_id"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	LastUpdated string `json:"last_updated"`
}

// EntryResponse is the response body for a single ledger entry.
type EntryResponse struct {
	ID             string          `json:"id"`
	WalletID       string          `json:"wallet_id"`
	Sequence       int64           `json:"sequence"`
	Type           string          `json:"type"`
	Amount         string          `json:"amount"`
	RunningBalance string          `json:"running_balance"`
	Category       string          `json:"category"`
	IdempotencyKey string          `json:"idempotency_key"`
	IntegrityHash  string          `json:"integrity_hash"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
	CreatedAt      string          `json:"created_at"`
	Integrity      string          `json:"integrity,omitempty"`
}

// StatementResponse is the response body for a wallet statement.
type StatementResponse struct {
	OwnerID      string          `json:"owner_id"`
	Balance      string          `json:"balance"`
	Status       string          `json:"status"`
	TotalEntries int64           `json:"total_entries"`
	Entries      []EntryResponse `json:"entries"`
}

// ReconciliationResponse is the response body for a wallet reconciliation.
type ReconciliationResponse struct {
	WalletID        string   `json:"wallet_id"`
	OwnerID         string   `json:"owner_id"`
	EntryCount      int      `json:"entry_count"`
	StoredBalance   string   `json:"stored_balance"`
	ComputedBalance string   `json:"computed_balance"`
	Consistent      bool     `json:"consistent"`
	BrokenChain     []string `json:"broken_chain"`
	Tampered        []string `json:"tampered"`
}

// VerifyResponse is the response body for an entry integrity check.
type VerifyResponse struct {
	EntryID string `json:"entry_id"`
	Valid   bool   `json:"valid"`
}

// ToWalletResponse converts a domain wallet.
func ToWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		WalletID:    w.ID.String(),
		OwnerID:     w.OwnerID,
		Balance:     domain.CanonicalAmount(w.Balance),
		Status:      string(w.Status),
		CreatedAt:   w.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdated: w.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// ToEntryResponse converts a domain ledger entry.
func ToEntryResponse(e *domain.LedgerEntry) EntryResponse {
	return EntryResponse{
		ID:             e.ID.String(),
		WalletID:       e.WalletID.String(),
		Sequence:       e.Sequence,
		Type:           string(e.Type),
		Amount:         domain.CanonicalAmount(e.Amount),
		RunningBalance: domain.CanonicalAmount(e.RunningBalance),
		Category:       string(e.Category),
		IdempotencyKey: e.IdempotencyKey,
		IntegrityHash:  e.IntegrityHash,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToStatementResponse converts a statement, newest entry first.
func ToStatementResponse(s *domain.Statement) StatementResponse {
	entries := make([]EntryResponse, 0, len(s.Entries))
	for i := range s.Entries {
		er := ToEntryResponse(&s.Entries[i].LedgerEntry)
		er.Integrity = string(s.Entries[i].Integrity)
		entries = append(entries, er)
	}
	return StatementResponse{
		OwnerID:      s.OwnerID,
		Balance:      domain.CanonicalAmount(s.Balance),
		Status:       string(s.Status),
		TotalEntries: s.Total,
		Entries:      entries,
	}
}

// ToReconciliationResponse converts an audit report.
func ToReconciliationResponse(r *domain.AuditReport) ReconciliationResponse {
	resp := ReconciliationResponse{
		WalletID:        r.WalletID.String(),
		OwnerID:         r.OwnerID,
		EntryCount:      r.EntryCount,
		StoredBalance:   domain.CanonicalAmount(r.StoredBalance),
		ComputedBalance: domain.CanonicalAmount(r.ComputedBalance),
		Consistent:      r.Consistent(),
		BrokenChain:     make([]string, 0, len(r.BrokenChain)),
		Tampered:        make([]string, 0, len(r.Tampered)),
	}
	for _, id := range r.BrokenChain {
		resp.BrokenChain = append(resp.BrokenChain, id.String())
	}
	for _, id := range r.Tampered {
		resp.Tampered = append(resp.Tampered, id.String())
	}
	return resp
}

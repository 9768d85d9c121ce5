package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited security event.
type AuditAction string

const (
	AuditActionWalletFrozen        AuditAction = "WALLET_FROZEN"
	AuditActionTamperDetected      AuditAction = "TAMPER_DETECTED"
	AuditActionLedgerInconsistency AuditAction = "LEDGER_INCONSISTENCY"
	AuditActionReconciliation      AuditAction = "RECONCILIATION_FAILED"

	// API write trail, recorded per authenticated caller.
	AuditActionWalletProvisioned    AuditAction = "WALLET_PROVISIONED"
	AuditActionTransactionSubmitted AuditAction = "TRANSACTION_SUBMITTED"
)

// AuditLog records a single security-relevant event.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	WalletID     *uuid.UUID  `json:"wallet_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet   AuditAction = "CREATE_WALLET"
	AuditActionDeposit        AuditAction = "DEPOSIT"
	AuditActionWithdraw       AuditAction = "WITHDRAW"
	AuditActionTransfer       AuditAction = "TRANSFER"
	AuditActionQRGenerate     AuditAction = "QR_GENERATE"
	AuditActionQRInitiate     AuditAction = "QR_INITIATE"
	AuditActionQRConfirm      AuditAction = "QR_CONFIRM"
	AuditActionAddMethod      AuditAction = "ADD_PAYMENT_METHOD"
	AuditActionRemoveMethod   AuditAction = "REMOVE_PAYMENT_METHOD"
	AuditActionEligibility    AuditAction = "UPDATE_ELIGIBILITY"
	AuditActionReconciliation AuditAction = "RECONCILIATION"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *string     `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeTransfer TransactionType = "transfer"
)

// TransactionStatus represents the lifecycle state of a transaction.
// pending -> completed | failed. Terminal states never change.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// MetaPaymentID is the metadata key correlating a QR payment.
const MetaPaymentID = "payment_id"

// Transaction is an append-only ledger record of a balance-changing event.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	Currency      Currency          `json:"currency"`
	FromWalletID  *uuid.UUID        `json:"from_wallet_id,omitempty"`
	ToWalletID    *uuid.UUID        `json:"to_wallet_id,omitempty"`
	Status        TransactionStatus `json:"status"`
	ExternalRef   *string           `json:"external_ref,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed
}

// CanTransition reports whether moving to next is a legal step.
func (t *Transaction) CanTransition(next TransactionStatus) bool {
	return t.Status == TransactionStatusPending &&
		(next == TransactionStatusCompleted || next == TransactionStatusFailed)
}

// Involves reports whether walletID is a party to the transaction.
func (t *Transaction) Involves(walletID uuid.UUID) bool {
	return (t.FromWalletID != nil && *t.FromWalletID == walletID) ||
		(t.ToWalletID != nil && *t.ToWalletID == walletID)
}

// PaymentID returns the QR correlation id, if any.
func (t *Transaction) PaymentID() string {
	return t.Metadata[MetaPaymentID]
}

// Validate checks the record shape before it is written.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("transaction amount must be positive, got %d", t.Amount)
	}
	switch t.Status {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
	default:
		return fmt.Errorf("unknown transaction status %q", t.Status)
	}
	switch t.Type {
	case TransactionTypeDeposit:
		if t.ToWalletID == nil {
			return fmt.Errorf("deposit requires a destination wallet")
		}
	case TransactionTypeWithdraw:
		if t.FromWalletID == nil {
			return fmt.Errorf("withdraw requires a source wallet")
		}
	case TransactionTypeTransfer:
		if t.ToWalletID == nil {
			return fmt.Errorf("transfer requires a destination wallet")
		}
		// A pending QR transfer has no payer until it is initiated.
		if t.Status != TransactionStatusPending && t.FromWalletID == nil {
			return fmt.Errorf("settled transfer requires a source wallet")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	return nil
}

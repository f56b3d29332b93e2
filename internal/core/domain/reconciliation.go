package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationEntry records money the processor moved that the ledger did not.
// It is written when a local commit fails after a confirmed intent or payout.
type ReconciliationEntry struct {
	ID            uuid.UUID       `json:"id"`
	Operation     TransactionType `json:"operation"`
	ExternalRef   string          `json:"external_ref"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Amount        int64           `json:"amount"`
	Currency      Currency        `json:"currency"`
	Error         string          `json:"error"`
	Resolved      bool            `json:"resolved"`
	CreatedAt     time.Time       `json:"created_at"`
}

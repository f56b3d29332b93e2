// Package dto defines the JSON bodies of the wallet API.
package dto

import (
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/money"
)

// CreateWalletRequest is the body of POST /wallets.
type CreateWalletRequest struct {
	Email          string `json:"email" binding:"omitempty,email,max=254"`
	InitialBalance int64  `json:"initial_balance" binding:"gte=0"`
	Currency       string `json:"currency" binding:"omitempty,currency"`
}

// AmountRequest carries a positive amount in minor units.
type AmountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// DepositRequest is the body of POST /deposits.
type DepositRequest struct {
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethodID string `json:"payment_method_id" binding:"required,safe_id"`
}

// ConfirmIntentRequest confirms a payment intent with a registered method.
type ConfirmIntentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required,safe_id"`
	PaymentMethodID string `json:"payment_method_id" binding:"required,safe_id"`
}

// TransferRequest is the body of POST /transfers.
type TransferRequest struct {
	RecipientUserID string `json:"recipient_user_id" binding:"required,safe_id"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
}

// InitiateQRRequest is the body of POST /qr/initiate. Either field names
// the payment.
type InitiateQRRequest struct {
	PaymentID       string `json:"payment_id" binding:"required_without=Payload,omitempty,safe_id"`
	Payload         string `json:"payload" binding:"max=2048"`
	PaymentMethodID string `json:"payment_method_id" binding:"required,safe_id"`
}

// PaymentMethodRequest is the body of POST /payment-methods.
type PaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required,safe_id"`
}

// EligibilityUpdateRequest is the body of PUT /admin/eligibility/:user_id.
type EligibilityUpdateRequest struct {
	Status string  `json:"status" binding:"required,oneof=pending approved rejected"`
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

// ListTransactionsQuery binds the history filters.
type ListTransactionsQuery struct {
	Page     int    `form:"page" binding:"omitempty,gte=1"`
	PageSize int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending completed failed"`
	Type     string `form:"type" binding:"omitempty,oneof=deposit withdraw transfer"`
}

// WalletResponse is a wallet with its balance in both representations.
type WalletResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Balance        int64     `json:"balance"`
	DisplayBalance string    `json:"display_balance"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Amount        int64             `json:"amount"`
	DisplayAmount string            `json:"display_amount"`
	Currency      string            `json:"currency"`
	FromWalletID  *string           `json:"from_wallet_id,omitempty"`
	ToWalletID    *string           `json:"to_wallet_id,omitempty"`
	Status        string            `json:"status"`
	ExternalRef   *string           `json:"external_ref,omitempty"`
	PaymentID     string            `json:"payment_id,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IntentResponse is a payment intent the client confirms later.
type IntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// QRPaymentResponse is a generated QR payment request.
type QRPaymentResponse struct {
	PaymentID     string              `json:"payment_id"`
	Payload       string              `json:"payload"`
	QRImage       string              `json:"qr_image,omitempty"` // PNG data URL of Payload
	ExpiresAt     time.Time           `json:"expires_at"`
	DisplayAmount string              `json:"display_amount"`
	Transaction   TransactionResponse `json:"transaction"`
}

// QRInitiationResponse is returned to a payer after scanning.
type QRInitiationResponse struct {
	PaymentIntentID string              `json:"payment_intent_id"`
	ClientSecret    string              `json:"client_secret,omitempty"`
	Transaction     TransactionResponse `json:"transaction"`
}

// NewWalletResponse converts a domain wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID.String(),
		UserID:         w.UserID,
		Balance:        w.Balance,
		DisplayBalance: money.Format(w.Balance, string(w.Currency)),
		Currency:       string(w.Currency),
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
}

// NewTransactionResponse converts a domain transaction.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		Amount:        t.Amount,
		DisplayAmount: money.Format(t.Amount, string(t.Currency)),
		Currency:      string(t.Currency),
		Status:        string(t.Status),
		ExternalRef:   t.ExternalRef,
		PaymentID:     t.PaymentID(),
		FailureReason: t.FailureReason,
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.FromWalletID != nil {
		s := t.FromWalletID.String()
		resp.FromWalletID = &s
	}
	if t.ToWalletID != nil {
		s := t.ToWalletID.String()
		resp.ToWalletID = &s
	}
	return resp
}

// NewTransactionList converts a page of transactions.
func NewTransactionList(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

// NewIntentResponse converts a payment intent.
func NewIntentResponse(pi *domain.PaymentIntent) IntentResponse {
	return IntentResponse{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		Status:          string(pi.Status),
	}
}

// NewQRPaymentResponse converts a generated QR payment.
func NewQRPaymentResponse(qr *ports.QRPayment) QRPaymentResponse {
	return QRPaymentResponse{
		PaymentID:     qr.PaymentID,
		Payload:       qr.Payload,
		ExpiresAt:     qr.ExpiresAt,
		DisplayAmount: money.Format(qr.Amount, string(qr.Currency)),
		Transaction:   NewTransactionResponse(&qr.Transaction),
	}
}

// NewQRInitiationResponse converts a QR initiation.
func NewQRInitiationResponse(init *ports.QRInitiation) QRInitiationResponse {
	return QRInitiationResponse{
		PaymentIntentID: init.IntentID,
		ClientSecret:    init.ClientSecret,
		Transaction:     NewTransactionResponse(init.Transaction),
	}
}

package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// InFlightGuard marks an idempotency key as being processed.
type InFlightGuard interface {
	// Acquire returns false if another request holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// QRCodec signs and verifies scannable QR payloads.
type QRCodec interface {
	Encode(claims QRClaims) (string, time.Time, error)
	Decode(token string) (*QRClaims, error)
}

// QRClaims is the content of a QR payload.
type QRClaims struct {
	PaymentID   string
	RecipientID string
	Amount      int64
	Currency    domain.Currency
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// WalletService is the orchestration engine's public operation surface.
type WalletService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	GetBalance(ctx context.Context, userID string) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]domain.Transaction, int64, error)
	GetPaymentStatus(ctx context.Context, userID, intentID string) (*domain.Transaction, error)

	Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error)
	CreateDepositIntent(ctx context.Context, userID string, amount int64) (*domain.PaymentIntent, error)
	ConfirmDeposit(ctx context.Context, req ConfirmDepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)

	AddPaymentMethod(ctx context.Context, userID, methodRef string) (*domain.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	RemovePaymentMethod(ctx context.Context, userID, methodRef string) error

	GenerateQRPayment(ctx context.Context, userID string, amount int64) (*QRPayment, error)
	InitiateQRPayment(ctx context.Context, req InitiateQRRequest) (*QRInitiation, error)
	ConfirmQRPayment(ctx context.Context, req ConfirmQRRequest) (*domain.Transaction, error)
}

// EligibilityService is the gate in front of wallet creation.
type EligibilityService interface {
	IsApproved(ctx context.Context, userID string) (bool, error)
	Submit(ctx context.Context, userID string) (*domain.EligibilityRecord, error)
	UpdateStatus(ctx context.Context, userID string, status domain.EligibilityStatus, reason *string) (*domain.EligibilityRecord, error)
	GetStatus(ctx context.Context, userID string) (*domain.EligibilityRecord, error)
}

// CreateWalletRequest holds validated input for wallet creation.
type CreateWalletRequest struct {
	UserID         string
	Email          string
	InitialBalance int64
	Currency       domain.Currency // empty = configured default
}

// DepositRequest holds validated input for a one-step deposit.
type DepositRequest struct {
	UserID         string
	Amount         int64
	MethodRef      string
	IdempotencyKey string
}

// ConfirmDepositRequest completes a deposit started with CreateDepositIntent.
type ConfirmDepositRequest struct {
	UserID    string
	IntentID  string
	MethodRef string
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	UserID         string
	Amount         int64
	IdempotencyKey string
}

// TransferRequest holds validated input for a peer transfer.
type TransferRequest struct {
	FromUserID     string
	ToUserID       string
	Amount         int64
	IdempotencyKey string
}

// ListTransactionsRequest selects a page of the caller's history.
type ListTransactionsRequest struct {
	UserID   string
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	Page     int
	PageSize int
}

// InitiateQRRequest binds a payer to a generated QR payment. Either
// PaymentID or the scanned Payload identifies the payment.
type InitiateQRRequest struct {
	PaymentID string
	Payload   string
	PayerID   string
	MethodRef string
}

// ConfirmQRRequest settles an initiated QR payment.
type ConfirmQRRequest struct {
	PayerID   string
	IntentID  string
	MethodRef string
}

// QRPayment is the result of generating a QR payment request.
type QRPayment struct {
	PaymentID     string             `json:"payment_id"`
	TransactionID uuid.UUID          `json:"transaction_id"`
	Amount        int64              `json:"amount"`
	Currency      domain.Currency    `json:"currency"`
	Payload       string             `json:"payload"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Transaction   domain.Transaction `json:"-"`
}

// QRInitiation is the result of a payer scanning a QR payment.
type QRInitiation struct {
	Transaction  *domain.Transaction `json:"transaction"`
	IntentID     string              `json:"intent_id"`
	ClientSecret string              `json:"client_secret,omitempty"`
}

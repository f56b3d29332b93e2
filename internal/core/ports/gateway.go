package ports

//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks

import (
	"context"

	"digital-wallet/internal/core/domain"
)

// PaymentGateway is the boundary to the external payment processor.
// Errors are *apperror.AppError with CodeGatewayUnavailable (transient)
// or CodeGatewayRejected (terminal).
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*domain.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, methodRef string) (*domain.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*domain.Payout, error)
	RetrieveMethod(ctx context.Context, methodRef string) (*domain.MethodDetails, error)
	AttachMethod(ctx context.Context, methodRef, customerRef string) (*domain.MethodDetails, error)
	DetachMethod(ctx context.Context, methodRef string) error
	ListMethods(ctx context.Context, customerRef string) ([]domain.MethodDetails, error)
}

// IntentRequest describes a payment intent to create.
type IntentRequest struct {
	Amount         int64
	Currency       domain.Currency
	CustomerRef    string
	MethodRef      string // optional
	Metadata       map[string]string
	IdempotencyKey string
}

// PayoutRequest describes funds to send to a user.
type PayoutRequest struct {
	Amount         int64
	Currency       domain.Currency
	CustomerRef    string
	Metadata       map[string]string
	IdempotencyKey string
}

package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository is the Account Store.
// Methods accepting pgx.Tx run inside the caller's atomic unit; ForUpdate
// variants hold the wallet row lock until that unit ends.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// ApplyDelta adds delta to the balance and returns the updated wallet.
	// It fails with domain.ErrInsufficientFunds if the result would be negative.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (*domain.Wallet, error)
}

// TransactionRepository is the Ledger Store. Records are never deleted.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByExternalRef(ctx context.Context, ref string) (*domain.Transaction, error)
	FindPendingByMetadata(ctx context.Context, key, value string) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// UpdateStatus moves a pending record to a terminal status.
	// It fails with domain.ErrInvalidTransition if the record is not pending.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, reason *string) error
	// AttachSource records the payer wallet and processor reference on a pending record.
	AttachSource(ctx context.Context, tx pgx.Tx, id uuid.UUID, fromWalletID uuid.UUID, externalRef string) error
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	Page     int
	PageSize int
}

// PaymentMethodRepository persists the user's registered payment methods.
type PaymentMethodRepository interface {
	Create(ctx context.Context, method *domain.PaymentMethod) error
	GetByMethodRef(ctx context.Context, methodRef string) (*domain.PaymentMethod, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	Delete(ctx context.Context, methodRef string) error
}

// EligibilityRepository persists identity-verification outcomes.
type EligibilityRepository interface {
	Get(ctx context.Context, userID string) (*domain.EligibilityRecord, error)
	Upsert(ctx context.Context, record *domain.EligibilityRecord) error
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// ReconciliationRepository stores processor movements the ledger missed.
type ReconciliationRepository interface {
	Create(ctx context.Context, entry *domain.ReconciliationEntry) error
	ListUnresolved(ctx context.Context, limit int) ([]domain.ReconciliationEntry, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DeliveryLogRepository persists notification delivery attempts.
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error
	Update(ctx context.Context, log *domain.DeliveryLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package ports

//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks

import (
	"context"

	"digital-wallet/internal/core/domain"
)

// Notifier delivers user-facing notifications. Failures never affect ledger state.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

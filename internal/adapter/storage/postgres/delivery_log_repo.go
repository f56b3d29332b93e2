package postgres

import (
	"context"
	"fmt"
	"time"

	"digital-wallet/internal/core/domain"
)

// DeliveryLogRepo implements ports.DeliveryLogRepository.
type DeliveryLogRepo struct {
	pool Pool
}

// NewDeliveryLogRepo creates a PostgreSQL-backed DeliveryLogRepository.
func NewDeliveryLogRepo(pool Pool) *DeliveryLogRepo {
	return &DeliveryLogRepo{pool: pool}
}

func (r *DeliveryLogRepo) Create(ctx context.Context, l *domain.DeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries
		(id, recipient, kind, endpoint, payload, http_status, attempt, status, next_retry_at, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		l.ID, l.Recipient, string(l.Kind), l.Endpoint,
		l.Payload, l.HTTPStatus, l.Attempt, string(l.Status),
		l.NextRetryAt, l.LastError, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

func (r *DeliveryLogRepo) Update(ctx context.Context, l *domain.DeliveryLog) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_deliveries
		 SET http_status=$1, attempt=$2, status=$3, next_retry_at=$4, last_error=$5, updated_at=$6
		 WHERE id=$7`,
		l.HTTPStatus, l.Attempt, string(l.Status),
		l.NextRetryAt, l.LastError, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("update delivery log: %w", err)
	}
	return nil
}

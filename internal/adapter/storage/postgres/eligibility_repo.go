package postgres

import (
	"context"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EligibilityRepo implements ports.EligibilityRepository.
type EligibilityRepo struct {
	pool Pool
}

// NewEligibilityRepo creates a new EligibilityRepo.
func NewEligibilityRepo(pool Pool) *EligibilityRepo {
	return &EligibilityRepo{pool: pool}
}

// Get returns the user's record, or nil, nil if none exists.
func (r *EligibilityRepo) Get(ctx context.Context, userID string) (*domain.EligibilityRecord, error) {
	query := `SELECT user_id, status, approved_at, rejection_reason, created_at, updated_at
		FROM eligibility_records WHERE user_id = $1`

	rec := &domain.EligibilityRecord{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rec.UserID, &rec.Status, &rec.ApprovedAt, &rec.RejectionReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get eligibility record: %w", err)
	}
	return rec, nil
}

// Upsert creates or replaces the user's record.
func (r *EligibilityRepo) Upsert(ctx context.Context, rec *domain.EligibilityRecord) error {
	query := `INSERT INTO eligibility_records (user_id, status, approved_at, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status,
			approved_at = EXCLUDED.approved_at,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		rec.UserID, rec.Status, rec.ApprovedAt, rec.RejectionReason, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert eligibility record: %w", err)
	}
	return nil
}

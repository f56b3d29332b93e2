package service

import (
	"context"
	"fmt"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// EligibilityServiceImpl implements ports.EligibilityService.
type EligibilityServiceImpl struct {
	repo        ports.EligibilityRepository
	autoApprove bool
	now         func() time.Time
	log         zerolog.Logger
}

// NewEligibilityService creates an EligibilityServiceImpl. With autoApprove
// every user is treated as approved and submissions are approved on arrival.
func NewEligibilityService(repo ports.EligibilityRepository, autoApprove bool, log zerolog.Logger) *EligibilityServiceImpl {
	return &EligibilityServiceImpl{
		repo:        repo,
		autoApprove: autoApprove,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

var _ ports.EligibilityService = (*EligibilityServiceImpl)(nil)

// IsApproved reports whether userID may hold a wallet.
func (s *EligibilityServiceImpl) IsApproved(ctx context.Context, userID string) (bool, error) {
	if s.autoApprove {
		return true, nil
	}
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get eligibility: %w", err))
	}
	return rec.IsApproved(), nil
}

// Submit opens a verification request. An existing record is returned unchanged.
func (s *EligibilityServiceImpl) Submit(ctx context.Context, userID string) (*domain.EligibilityRecord, error) {
	if userID == "" {
		return nil, apperror.Validation("user_id is required")
	}
	existing, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get eligibility: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	rec := &domain.EligibilityRecord{
		UserID:    userID,
		Status:    domain.EligibilityPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.autoApprove {
		rec.Status = domain.EligibilityApproved
		rec.ApprovedAt = &now
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save eligibility: %w", err))
	}

	s.log.Info().Str("user_id", userID).Str("status", string(rec.Status)).Msg("eligibility submitted")
	return rec, nil
}

// UpdateStatus records a verification decision.
func (s *EligibilityServiceImpl) UpdateStatus(ctx context.Context, userID string, status domain.EligibilityStatus, reason *string) (*domain.EligibilityRecord, error) {
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown eligibility status %q", status))
	}
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get eligibility: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("eligibility record")
	}

	now := s.now()
	rec.Status = status
	rec.UpdatedAt = now
	switch status {
	case domain.EligibilityApproved:
		rec.ApprovedAt = &now
		rec.RejectionReason = nil
	case domain.EligibilityRejected:
		rec.ApprovedAt = nil
		rec.RejectionReason = reason
	default:
		rec.ApprovedAt = nil
		rec.RejectionReason = nil
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save eligibility: %w", err))
	}

	s.log.Info().Str("user_id", userID).Str("status", string(status)).Msg("eligibility updated")
	return rec, nil
}

// GetStatus returns the user's record.
func (s *EligibilityServiceImpl) GetStatus(ctx context.Context, userID string) (*domain.EligibilityRecord, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get eligibility: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("eligibility record")
	}
	return rec, nil
}

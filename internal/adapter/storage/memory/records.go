package memory

import (
	"context"
	"fmt"
	"sort"

	"digital-wallet/internal/core/domain"
)

// PaymentMethodRepo implements ports.PaymentMethodRepository over a Store.
type PaymentMethodRepo struct{ s *Store }

// NewPaymentMethodRepo creates a PaymentMethodRepo.
func NewPaymentMethodRepo(s *Store) *PaymentMethodRepo { return &PaymentMethodRepo{s: s} }

func (r *PaymentMethodRepo) Create(_ context.Context, m *domain.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.methods[m.MethodRef]; ok {
		return fmt.Errorf("payment method %s: %w", m.MethodRef, domain.ErrAlreadyExists)
	}
	r.s.methods[m.MethodRef] = *m
	return nil
}

func (r *PaymentMethodRepo) GetByMethodRef(_ context.Context, methodRef string) (*domain.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.methods[methodRef]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *PaymentMethodRepo) ListByUser(_ context.Context, userID string) ([]domain.PaymentMethod, error) {
	r.s.mu.Lock()
	var out []domain.PaymentMethod
	for _, m := range r.s.methods {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *PaymentMethodRepo) Delete(_ context.Context, methodRef string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.methods, methodRef)
	return nil
}

// EligibilityRepo implements ports.EligibilityRepository over a Store.
type EligibilityRepo struct{ s *Store }

// NewEligibilityRepo creates an EligibilityRepo.
func NewEligibilityRepo(s *Store) *EligibilityRepo { return &EligibilityRepo{s: s} }

func (r *EligibilityRepo) Get(_ context.Context, userID string) (*domain.EligibilityRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.eligibility[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *EligibilityRepo) Upsert(_ context.Context, rec *domain.EligibilityRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.eligibility[rec.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	r.s.eligibility[rec.UserID] = *rec
	return nil
}

// ReconciliationRepo implements ports.ReconciliationRepository over a Store.
type ReconciliationRepo struct{ s *Store }

// NewReconciliationRepo creates a ReconciliationRepo.
func NewReconciliationRepo(s *Store) *ReconciliationRepo { return &ReconciliationRepo{s: s} }

func (r *ReconciliationRepo) Create(_ context.Context, e *domain.ReconciliationEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recon = append(r.s.recon, *e)
	return nil
}

func (r *ReconciliationRepo) ListUnresolved(_ context.Context, limit int) ([]domain.ReconciliationEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ReconciliationEntry
	for _, e := range r.s.recon {
		if e.Resolved {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditRepo implements ports.AuditRepository over a Store.
type AuditRepo struct{ s *Store }

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// AuditCount returns how many audit entries were stored.
func (s *Store) AuditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audit)
}

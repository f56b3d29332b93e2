package service

import (
	"context"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// AddPaymentMethod attaches methodRef to the caller's processor customer and
// registers it. Adding a method the caller already holds returns the
// existing record.
func (s *WalletServiceImpl) AddPaymentMethod(ctx context.Context, userID, methodRef string) (*domain.PaymentMethod, error) {
	if methodRef == "" {
		return nil, apperror.Validation("payment_method_id is required")
	}
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.methods.GetByMethodRef(ctx, methodRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment method: %w", err))
	}
	if existing != nil && existing.UserID == userID {
		return existing, nil
	}

	details, err := s.gateway.RetrieveMethod(ctx, methodRef)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayResourceMissing) {
			return nil, apperror.ErrNotFound("payment method")
		}
		return nil, err
	}
	if details.CustomerRef != "" && details.CustomerRef != wallet.CustomerRef {
		if err := s.gateway.DetachMethod(ctx, methodRef); err != nil && !errors.Is(err, domain.ErrGatewayResourceMissing) {
			return nil, err
		}
		s.log.Debug().Str("method_ref", methodRef).Str("customer_ref", details.CustomerRef).Msg("payment method detached from previous customer")
	}

	attached, err := s.gateway.AttachMethod(ctx, methodRef, wallet.CustomerRef)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := s.methods.Delete(ctx, methodRef); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("delete previous registration: %w", err))
		}
	}

	current, err := s.methods.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment methods: %w", err))
	}

	method := &domain.PaymentMethod{
		ID:        uuid.New(),
		UserID:    userID,
		MethodRef: methodRef,
		Kind:      attached.Kind,
		Card:      attached.Card,
		IsDefault: len(current) == 0,
		CreatedAt: s.now(),
	}
	if err := s.methods.Create(ctx, method); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent add of the same method won the insert.
			if winner, gErr := s.methods.GetByMethodRef(ctx, methodRef); gErr == nil && winner != nil && winner.UserID == userID {
				return winner, nil
			}
			return nil, apperror.ErrAlreadyExists("payment method")
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment method: %w", err))
	}

	s.log.Info().Str("user_id", userID).Str("method_ref", methodRef).Str("kind", method.Kind).Msg("payment method added")

	fields := map[string]string{"method_ref": methodRef, "kind": method.Kind}
	if method.Card != nil {
		fields["brand"] = method.Card.Brand
		fields["last4"] = method.Card.Last4
	}
	s.notify(domain.NotifyMethodAdded, userID, fields)
	return method, nil
}

// ListPaymentMethods returns the caller's registered methods, oldest first.
func (s *WalletServiceImpl) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	if _, err := s.walletFor(ctx, userID); err != nil {
		return nil, err
	}
	methods, err := s.methods.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payment methods: %w", err))
	}
	return methods, nil
}

// RemovePaymentMethod detaches methodRef at the processor and deletes the
// registration. A method the processor no longer knows is deleted locally.
func (s *WalletServiceImpl) RemovePaymentMethod(ctx context.Context, userID, methodRef string) error {
	if _, err := s.walletFor(ctx, userID); err != nil {
		return err
	}
	m, err := s.methods.GetByMethodRef(ctx, methodRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payment method: %w", err))
	}
	if m == nil {
		return apperror.ErrNotFound("payment method")
	}
	if m.UserID != userID {
		return apperror.ErrMethodNotOwned()
	}

	if err := s.gateway.DetachMethod(ctx, methodRef); err != nil {
		if !errors.Is(err, domain.ErrGatewayResourceMissing) {
			return err
		}
		s.log.Warn().Str("method_ref", methodRef).Msg("processor no longer knows payment method, deleting locally")
	}

	if err := s.methods.Delete(ctx, methodRef); err != nil {
		return apperror.InternalError(fmt.Errorf("delete payment method: %w", err))
	}
	s.log.Info().Str("user_id", userID).Str("method_ref", methodRef).Msg("payment method removed")
	return nil
}

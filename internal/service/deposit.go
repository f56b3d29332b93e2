package service

import (
	"context"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// Deposit collects amount from a registered payment method and credits the
// settled amount to the caller's wallet.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.idempotent(ctx, req.UserID, domain.TransactionTypeDeposit, req.IdempotencyKey, func(key string) (*domain.Transaction, error) {
		wallet, err := s.walletFor(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if err := s.checkMethodOwner(ctx, req.UserID, req.MethodRef); err != nil {
			return nil, err
		}

		intent, err := s.gateway.CreatePaymentIntent(ctx, ports.IntentRequest{
			Amount:         req.Amount,
			Currency:       wallet.Currency,
			CustomerRef:    wallet.CustomerRef,
			MethodRef:      req.MethodRef,
			Metadata:       map[string]string{"user_id": req.UserID, "wallet_id": wallet.ID.String(), "operation": "deposit"},
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, gatewayFailure(err, apperror.ErrDepositFailed)
		}
		s.log.Debug().Str("intent_id", intent.ID).Int64("amount", req.Amount).Msg("deposit intent created")

		confirmed, err := s.gateway.ConfirmPaymentIntent(ctx, intent.ID, req.MethodRef)
		if err != nil {
			return nil, gatewayFailure(err, apperror.ErrDepositFailed)
		}
		return s.creditDeposit(ctx, wallet, confirmed, key)
	})
}

// CreateDepositIntent starts a two-phase deposit. The client completes the
// intent with ConfirmDeposit.
func (s *WalletServiceImpl) CreateDepositIntent(ctx context.Context, userID string, amount int64) (*domain.PaymentIntent, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, ports.IntentRequest{
		Amount:      amount,
		Currency:    wallet.Currency,
		CustomerRef: wallet.CustomerRef,
		Metadata:    map[string]string{"user_id": userID, "wallet_id": wallet.ID.String(), "operation": "deposit"},
	})
	if err != nil {
		return nil, gatewayFailure(err, apperror.ErrDepositFailed)
	}

	s.log.Debug().Str("intent_id", intent.ID).Str("wallet_id", wallet.ID.String()).Int64("amount", amount).Msg("deposit intent created")
	return intent, nil
}

// ConfirmDeposit completes an intent from CreateDepositIntent. Confirming an
// already credited intent returns the existing transaction.
func (s *WalletServiceImpl) ConfirmDeposit(ctx context.Context, req ports.ConfirmDepositRequest) (*domain.Transaction, error) {
	if req.IntentID == "" {
		return nil, apperror.Validation("payment_intent_id is required")
	}
	wallet, err := s.walletFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMethodOwner(ctx, req.UserID, req.MethodRef); err != nil {
		return nil, err
	}

	// Serialize confirmations of one intent so it is credited once.
	lockKey := "intent:" + req.IntentID
	if ok, _ := s.local.Acquire(ctx, lockKey, s.settings.InFlightTTL); !ok {
		return nil, apperror.ErrDuplicateRequest()
	}
	defer s.local.Release(ctx, lockKey) //nolint:errcheck

	if done, err := s.creditedDeposit(ctx, wallet, req.IntentID); done != nil || err != nil {
		return done, err
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, req.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayResourceMissing) {
			return nil, apperror.ErrNotFound("payment intent")
		}
		return nil, err
	}
	if intent.CustomerRef != "" && intent.CustomerRef != wallet.CustomerRef {
		return nil, apperror.ErrNotFound("payment intent")
	}

	if !intent.Succeeded() {
		intent, err = s.gateway.ConfirmPaymentIntent(ctx, req.IntentID, req.MethodRef)
		if err != nil {
			return nil, gatewayFailure(err, apperror.ErrDepositFailed)
		}
	}
	return s.creditDeposit(ctx, wallet, intent, "")
}

// creditedDeposit returns the deposit already recorded for intentID, if any.
func (s *WalletServiceImpl) creditedDeposit(ctx context.Context, wallet *domain.Wallet, intentID string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByExternalRef(ctx, intentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction by ref: %w", err))
	}
	if txn == nil {
		return nil, nil
	}
	if txn.Type != domain.TransactionTypeDeposit || !txn.Involves(wallet.ID) {
		return nil, apperror.ErrNotFound("payment intent")
	}
	return txn, nil
}

// creditDeposit applies a confirmed intent to the wallet.
func (s *WalletServiceImpl) creditDeposit(ctx context.Context, wallet *domain.Wallet, intent *domain.PaymentIntent, idemKey string) (*domain.Transaction, error) {
	if !intent.Succeeded() {
		return nil, apperror.ErrDepositFailed(fmt.Errorf("intent %s ended in status %s", intent.ID, intent.Status))
	}

	amount := intent.SettledAmount()
	now := s.now()
	ref := intent.ID
	txn := &domain.Transaction{
		ID:          uuid.New(),
		Type:        domain.TransactionTypeDeposit,
		Amount:      amount,
		Currency:    wallet.Currency,
		ToWalletID:  &wallet.ID,
		Status:      domain.TransactionStatusCompleted,
		ExternalRef: &ref,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updated, err := s.commitDeposit(ctx, wallet.ID, txn, idemKey)
	if err != nil {
		s.reconcile(ctx, domain.TransactionTypeDeposit, intent.ID, wallet.ID, &txn.ID, amount, wallet.Currency, err)
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("intent_id", intent.ID).
		Int64("amount", amount).
		Msg("deposit completed")

	s.notify(domain.NotifyDeposit, wallet.UserID, txnFields(txn, updated.Balance))
	return txn, nil
}

func (s *WalletServiceImpl) commitDeposit(ctx context.Context, walletID uuid.UUID, txn *domain.Transaction, idemKey string) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	updated, err := s.wallets.ApplyDelta(ctx, dbTx, walletID, txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := s.saveIdempotency(ctx, dbTx, idemKey, txn); err != nil {
		return nil, fmt.Errorf("save idempotency log: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

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

// Withdraw pays amount out to the caller and debits the wallet only once the
// payout is accepted.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.idempotent(ctx, req.UserID, domain.TransactionTypeWithdraw, req.IdempotencyKey, func(key string) (*domain.Transaction, error) {
		wallet, err := s.walletFor(ctx, req.UserID)
		if err != nil {
			return nil, err
		}

		held, err := s.reserve(ctx, wallet.ID, req.Amount)
		if err != nil {
			return nil, err
		}
		defer held.release()

		payout, err := s.gateway.CreatePayout(ctx, ports.PayoutRequest{
			Amount:         req.Amount,
			Currency:       wallet.Currency,
			CustomerRef:    wallet.CustomerRef,
			Metadata:       map[string]string{"user_id": req.UserID, "wallet_id": wallet.ID.String()},
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, gatewayFailure(err, apperror.ErrWithdrawFailed)
		}
		s.log.Debug().Str("payout_id", payout.ID).Int64("amount", req.Amount).Msg("payout created")

		now := s.now()
		ref := payout.ID
		txn := &domain.Transaction{
			ID:           uuid.New(),
			Type:         domain.TransactionTypeWithdraw,
			Amount:       req.Amount,
			Currency:     wallet.Currency,
			FromWalletID: &wallet.ID,
			Status:       domain.TransactionStatusCompleted,
			ExternalRef:  &ref,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		updated, err := s.commitWithdraw(ctx, held, txn, key)
		if err != nil {
			s.reconcile(ctx, domain.TransactionTypeWithdraw, payout.ID, wallet.ID, &txn.ID, req.Amount, wallet.Currency, err)
			return nil, apperror.InternalError(err)
		}

		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("wallet_id", wallet.ID.String()).
			Str("payout_id", payout.ID).
			Int64("amount", req.Amount).
			Msg("withdrawal completed")

		s.notify(domain.NotifyWithdrawal, wallet.UserID, txnFields(txn, updated.Balance))
		return txn, nil
	})
}

// reserve holds amount on the wallet for the duration of a payout. The check
// runs under the wallet row lock so it sees every committed debit.
func (s *WalletServiceImpl) reserve(ctx context.Context, walletID uuid.UUID, amount int64) (*hold, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.wallets.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !locked.CanCover(amount, s.reserved.amount(walletID)) {
		return nil, apperror.ErrInsufficientFunds()
	}
	s.reserved.add(walletID, amount)
	return &hold{r: s.reserved, walletID: walletID, amount: amount}, nil
}

// commitWithdraw debits the wallet and swaps the reservation for the debit
// while the row lock is held, so no reader sees the amount counted twice.
func (s *WalletServiceImpl) commitWithdraw(ctx context.Context, held *hold, txn *domain.Transaction, idemKey string) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	walletID := held.walletID
	locked, err := s.wallets.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if locked == nil {
		return nil, fmt.Errorf("wallet %s: %w", walletID, domain.ErrNotFound)
	}

	updated, err := s.wallets.ApplyDelta(ctx, dbTx, walletID, -txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := s.saveIdempotency(ctx, dbTx, idemKey, txn); err != nil {
		return nil, fmt.Errorf("save idempotency log: %w", err)
	}
	held.release()
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// debitErr maps a guarded balance failure onto PAY_001.
func debitErr(err error) error {
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return apperror.ErrInsufficientFunds()
	}
	return apperror.InternalError(err)
}

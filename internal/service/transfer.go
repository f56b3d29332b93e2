package service

import (
	"bytes"
	"context"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Transfer moves amount between two wallets. It never calls the processor.
func (s *WalletServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.idempotent(ctx, req.FromUserID, domain.TransactionTypeTransfer, req.IdempotencyKey, func(key string) (*domain.Transaction, error) {
		from, err := s.walletFor(ctx, req.FromUserID)
		if err != nil {
			return nil, err
		}
		to, err := s.wallets.GetByUserID(ctx, req.ToUserID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get recipient wallet: %w", err))
		}
		if to == nil {
			return nil, apperror.ErrNotFound("recipient wallet")
		}
		if from.ID == to.ID {
			return nil, apperror.ErrSameWallet()
		}
		if from.Currency != to.Currency {
			return nil, apperror.Validation("wallets hold different currencies")
		}

		now := s.now()
		txn := &domain.Transaction{
			ID:           uuid.New(),
			Type:         domain.TransactionTypeTransfer,
			Amount:       req.Amount,
			Currency:     from.Currency,
			FromWalletID: &from.ID,
			ToWalletID:   &to.ID,
			Status:       domain.TransactionStatusCompleted,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		balances, err := s.moveFunds(ctx, dbTx, from.ID, to.ID, req.Amount)
		if err != nil {
			return nil, err
		}
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		if err := s.saveIdempotency(ctx, dbTx, key, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		s.log.Info().
			Str("tx_id", txn.ID.String()).
			Str("from_wallet_id", from.ID.String()).
			Str("to_wallet_id", to.ID.String()).
			Int64("amount", req.Amount).
			Msg("transfer completed")

		sent := txnFields(txn, balances[from.ID])
		sent["recipient"] = to.UserID
		received := txnFields(txn, balances[to.ID])
		received["sender"] = from.UserID
		s.notify(domain.NotifyTransferSent, from.UserID, sent)
		s.notify(domain.NotifyTransferReceived, to.UserID, received)
		return txn, nil
	})
}

// moveFunds locks both wallets in ascending id order, checks the payer's
// available balance and applies the debit and credit. It returns the new
// balance of each wallet.
func (s *WalletServiceImpl) moveFunds(ctx context.Context, dbTx pgx.Tx, fromID, toID uuid.UUID, amount int64) (map[uuid.UUID]int64, error) {
	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}

	locked := make(map[uuid.UUID]*domain.Wallet, 2)
	for _, id := range []uuid.UUID{first, second} {
		w, err := s.wallets.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		locked[id] = w
	}

	if !locked[fromID].CanCover(amount, s.reserved.amount(fromID)) {
		return nil, apperror.ErrInsufficientFunds()
	}

	debited, err := s.wallets.ApplyDelta(ctx, dbTx, fromID, -amount)
	if err != nil {
		return nil, debitErr(fmt.Errorf("debit wallet: %w", err))
	}
	credited, err := s.wallets.ApplyDelta(ctx, dbTx, toID, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	return map[uuid.UUID]int64{fromID: debited.Balance, toID: credited.Balance}, nil
}

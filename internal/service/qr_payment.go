package service

import (
	"context"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/idgen"

	"github.com/google/uuid"
)

// GenerateQRPayment records a pending transfer to the caller and returns the
// signed payload a payer scans. No balance changes.
func (s *WalletServiceImpl) GenerateQRPayment(ctx context.Context, userID string, amount int64) (*ports.QRPayment, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	paymentID := idgen.New()
	payload, expiresAt, err := s.qr.Encode(ports.QRClaims{
		PaymentID:   paymentID,
		RecipientID: userID,
		Amount:      amount,
		Currency:    wallet.Currency,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encode QR payload: %w", err))
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:         uuid.New(),
		Type:       domain.TransactionTypeTransfer,
		Amount:     amount,
		Currency:   wallet.Currency,
		ToWalletID: &wallet.ID,
		Status:     domain.TransactionStatusPending,
		Metadata:   map[string]string{domain.MetaPaymentID: paymentID},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("payment_id", paymentID).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", amount).
		Msg("QR payment generated")

	return &ports.QRPayment{
		PaymentID:     paymentID,
		TransactionID: txn.ID,
		Amount:        amount,
		Currency:      wallet.Currency,
		Payload:       payload,
		ExpiresAt:     expiresAt,
		Transaction:   *txn,
	}, nil
}

// InitiateQRPayment binds the payer to a pending QR payment and creates the
// intent the payer will confirm. No balance changes.
func (s *WalletServiceImpl) InitiateQRPayment(ctx context.Context, req ports.InitiateQRRequest) (*ports.QRInitiation, error) {
	paymentID := req.PaymentID
	var claims *ports.QRClaims
	if req.Payload != "" {
		c, err := s.qr.Decode(req.Payload)
		if err != nil {
			return nil, apperror.ErrInvalidQRCode(err)
		}
		if paymentID != "" && paymentID != c.PaymentID {
			return nil, apperror.ErrInvalidPaymentID()
		}
		paymentID, claims = c.PaymentID, c
	}
	if paymentID == "" {
		return nil, apperror.Validation("payment_id is required")
	}

	txn, err := s.txRepo.FindPendingByMetadata(ctx, domain.MetaPaymentID, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find QR payment: %w", err))
	}
	if txn == nil || txn.ToWalletID == nil {
		return nil, apperror.ErrInvalidPaymentID()
	}
	if claims != nil && (claims.Amount != txn.Amount || claims.Currency != txn.Currency) {
		return nil, apperror.ErrInvalidPaymentID()
	}

	payer, err := s.walletFor(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}
	if payer.ID == *txn.ToWalletID {
		return nil, apperror.ErrSameWallet()
	}
	if txn.FromWalletID != nil && *txn.FromWalletID != payer.ID {
		return nil, apperror.ErrInvalidPaymentID()
	}
	if payer.Currency != txn.Currency {
		return nil, apperror.Validation("wallets hold different currencies")
	}
	if !payer.CanCover(txn.Amount, s.reserved.amount(payer.ID)) {
		return nil, apperror.ErrInsufficientFunds()
	}
	if err := s.checkMethodOwner(ctx, req.PayerID, req.MethodRef); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, ports.IntentRequest{
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		CustomerRef: payer.CustomerRef,
		MethodRef:   req.MethodRef,
		Metadata: map[string]string{
			domain.MetaPaymentID: paymentID,
			"user_id":            req.PayerID,
			"operation":          "qr_payment",
		},
		IdempotencyKey: "qr:" + paymentID + ":" + payer.ID.String(),
	})
	if err != nil {
		return nil, gatewayFailure(err, apperror.ErrPaymentFailed)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.AttachSource(ctx, dbTx, txn.ID, payer.ID, intent.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			return nil, apperror.ErrInvalidPaymentID()
		}
		return nil, apperror.InternalError(fmt.Errorf("attach payer: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	ref := intent.ID
	txn.FromWalletID = &payer.ID
	txn.ExternalRef = &ref

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("payment_id", paymentID).
		Str("intent_id", intent.ID).
		Str("wallet_id", payer.ID.String()).
		Msg("QR payment initiated")

	return &ports.QRInitiation{Transaction: txn, IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmQRPayment confirms the payer's intent and settles the transfer.
// Confirming a completed payment returns it without reapplying balances.
func (s *WalletServiceImpl) ConfirmQRPayment(ctx context.Context, req ports.ConfirmQRRequest) (*domain.Transaction, error) {
	if req.IntentID == "" {
		return nil, apperror.Validation("payment_intent_id is required")
	}
	payer, err := s.walletFor(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}

	txn, err := s.txRepo.GetByExternalRef(ctx, req.IntentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction by ref: %w", err))
	}
	if txn == nil || txn.PaymentID() == "" || txn.FromWalletID == nil || *txn.FromWalletID != payer.ID {
		return nil, apperror.ErrNotFound("payment")
	}
	switch txn.Status {
	case domain.TransactionStatusCompleted:
		return txn, nil
	case domain.TransactionStatusFailed:
		return nil, apperror.ErrInvalidPaymentID()
	}
	if err := s.checkMethodOwner(ctx, req.PayerID, req.MethodRef); err != nil {
		return nil, err
	}

	lockKey := "intent:" + req.IntentID
	if ok, _ := s.local.Acquire(ctx, lockKey, s.settings.InFlightTTL); !ok {
		return nil, apperror.ErrDuplicateRequest()
	}
	defer s.local.Release(ctx, lockKey) //nolint:errcheck

	intent, err := s.gateway.ConfirmPaymentIntent(ctx, req.IntentID, req.MethodRef)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeGatewayUnavailable) {
			return nil, err
		}
		s.failQRPayment(ctx, txn, failureReason(err))
		return nil, apperror.ErrPaymentFailed(err)
	}
	if !intent.Succeeded() {
		cause := fmt.Errorf("intent %s ended in status %s", intent.ID, intent.Status)
		if intent.Status == domain.IntentCanceled || intent.Status == domain.IntentRequiresPaymentMethod {
			s.failQRPayment(ctx, txn, cause.Error())
		}
		return nil, apperror.ErrPaymentFailed(cause)
	}

	return s.settleQRPayment(ctx, txn, payer, intent.ID)
}

func (s *WalletServiceImpl) settleQRPayment(ctx context.Context, txn *domain.Transaction, payer *domain.Wallet, intentID string) (*domain.Transaction, error) {
	recipientID := *txn.ToWalletID

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.reconcile(ctx, domain.TransactionTypeTransfer, intentID, payer.ID, &txn.ID, txn.Amount, txn.Currency, err)
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, txn.ID)
	if err != nil {
		s.reconcile(ctx, domain.TransactionTypeTransfer, intentID, payer.ID, &txn.ID, txn.Amount, txn.Currency, err)
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if current != nil && current.Status == domain.TransactionStatusCompleted {
		return current, nil
	}

	balances, err := s.moveFunds(ctx, dbTx, payer.ID, recipientID, txn.Amount)
	if err != nil {
		s.reconcile(ctx, domain.TransactionTypeTransfer, intentID, payer.ID, &txn.ID, txn.Amount, txn.Currency, err)
		if apperror.HasCode(err, apperror.CodeInsufficientFunds) {
			_ = dbTx.Rollback(ctx)
			s.failQRPayment(ctx, txn, "insufficient funds at confirmation")
		}
		return nil, err
	}
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusCompleted, nil); err != nil {
		s.reconcile(ctx, domain.TransactionTypeTransfer, intentID, payer.ID, &txn.ID, txn.Amount, txn.Currency, err)
		return nil, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.reconcile(ctx, domain.TransactionTypeTransfer, intentID, payer.ID, &txn.ID, txn.Amount, txn.Currency, err)
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	txn.Status = domain.TransactionStatusCompleted
	txn.UpdatedAt = s.now()

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("payment_id", txn.PaymentID()).
		Str("intent_id", intentID).
		Int64("amount", txn.Amount).
		Msg("QR payment completed")

	recipient, err := s.wallets.GetByID(ctx, recipientID)
	if err != nil || recipient == nil {
		s.log.Warn().Err(err).Str("wallet_id", recipientID.String()).Msg("recipient lookup for notification failed")
	} else {
		received := txnFields(txn, balances[recipientID])
		received["sender"] = payer.UserID
		s.notify(domain.NotifyQRPaymentReceived, recipient.UserID, received)
	}
	sent := txnFields(txn, balances[payer.ID])
	sent["payment_id"] = txn.PaymentID()
	s.notify(domain.NotifyQRPaymentSent, payer.UserID, sent)
	return txn, nil
}

// failQRPayment moves a pending QR payment to failed in its own atomic unit.
func (s *WalletServiceImpl) failQRPayment(ctx context.Context, txn *domain.Transaction, reason string) {
	ctx = context.WithoutCancel(ctx)
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to mark QR payment failed")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusFailed, &reason); err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to mark QR payment failed")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to mark QR payment failed")
		return
	}
	s.log.Info().Str("tx_id", txn.ID.String()).Str("reason", reason).Msg("QR payment failed")
}

func failureReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

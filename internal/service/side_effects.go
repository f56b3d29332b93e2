package service

import (
	"context"
	"encoding/json"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/pkg/money"

	"github.com/google/uuid"
)

// notify dispatches n in the background. Failures are logged only.
func (s *WalletServiceImpl) notify(kind domain.NotificationKind, recipient string, fields map[string]string) {
	if s.notifier == nil {
		return
	}
	n := domain.Notification{Recipient: recipient, Kind: kind, Fields: fields, CreatedAt: s.now()}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.Notify(context.Background(), n); err != nil {
			s.log.Warn().Err(err).Str("user_id", recipient).Str("kind", string(kind)).Msg("notification failed")
		}
	}()
}

func txnFields(txn *domain.Transaction, balance int64) map[string]string {
	return map[string]string{
		"transaction_id": txn.ID.String(),
		"amount":         money.Format(txn.Amount, string(txn.Currency)),
		"balance":        money.Format(balance, string(txn.Currency)),
		"status":         string(txn.Status),
		"date":           txn.CreatedAt.Format(time.RFC3339),
	}
}

func (s *WalletServiceImpl) notifyWalletCreated(w *domain.Wallet, initial *domain.Transaction) {
	s.notify(domain.NotifyWalletCreated, w.UserID, map[string]string{
		"wallet_id": w.ID.String(),
		"balance":   money.Format(w.Balance, string(w.Currency)),
		"currency":  string(w.Currency),
	})
	if initial != nil {
		s.notify(domain.NotifyDeposit, w.UserID, txnFields(initial, w.Balance))
	}
}

// reconcile records money the processor moved that the ledger could not
// apply. It never fails the caller further.
func (s *WalletServiceImpl) reconcile(ctx context.Context, op domain.TransactionType, externalRef string, walletID uuid.UUID, txnID *uuid.UUID, amount int64, currency domain.Currency, cause error) {
	entry := &domain.ReconciliationEntry{
		ID:            uuid.New(),
		Operation:     op,
		ExternalRef:   externalRef,
		WalletID:      walletID,
		TransactionID: txnID,
		Amount:        amount,
		Currency:      currency,
		Error:         cause.Error(),
		CreatedAt:     s.now(),
	}

	s.log.Error().
		Err(cause).
		Str("operation", string(op)).
		Str("external_ref", externalRef).
		Str("wallet_id", walletID.String()).
		Int64("amount", amount).
		Msg("processor movement not applied to ledger, reconciliation required")

	ctx = context.WithoutCancel(ctx)
	if s.reconRepo != nil {
		if err := s.reconRepo.Create(ctx, entry); err != nil {
			s.log.Error().Err(err).Str("external_ref", externalRef).Msg("failed to persist reconciliation entry")
		}
	}
	if s.audit != nil {
		details, _ := json.Marshal(entry)
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			Action:       domain.AuditActionReconciliation,
			ResourceType: "wallet",
			ResourceID:   walletID.String(),
			Details:      string(details),
			CreatedAt:    entry.CreatedAt,
		})
	}
}

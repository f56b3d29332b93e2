package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/internal/core/ports/mocks"
	"digital-wallet/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCreateWallet_WithInitialBalance(t *testing.T) {
	e := newEngine(t)
	w := e.openWallet(t, "alice", 5000)

	assert.Equal(t, int64(5000), w.Balance)
	assert.Equal(t, domain.CurrencyUSD, w.Currency)
	assert.NotEmpty(t, w.CustomerRef)

	txns := e.history(t, "alice")
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionTypeDeposit, txns[0].Type)
	assert.Equal(t, domain.TransactionStatusCompleted, txns[0].Status)
	assert.Equal(t, w.ID, *txns[0].ToWalletID)

	e.svc.Wait()
	assert.ElementsMatch(t, []domain.NotificationKind{domain.NotifyWalletCreated, domain.NotifyDeposit}, e.notifier.kinds("alice"))
}

func TestCreateWallet_ZeroBalanceAppendsNothing(t *testing.T) {
	e := newEngine(t)
	e.openWallet(t, "alice", 0)
	assert.Empty(t, e.history(t, "alice"))
}

func TestCreateWallet_RequiresEligibility(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: "nobody", Email: "n@example.com"})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotEligible))

	_, err = e.elig.Submit(ctx, "mallory")
	require.NoError(t, err)
	reason := "failed checks"
	_, err = e.elig.UpdateStatus(ctx, "mallory", domain.EligibilityRejected, &reason)
	require.NoError(t, err)

	_, err = e.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: "mallory", Email: "m@example.com", InitialBalance: 100})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotEligible))

	_, err = e.svc.GetBalance(ctx, "mallory")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestCreateWallet_AutoApprove(t *testing.T) {
	e := newEngine(t)
	e.svc.eligible = NewEligibilityService(nil, true, e.svc.log)

	w, err := e.svc.CreateWallet(context.Background(), ports.CreateWalletRequest{UserID: "walk-in", Email: "w@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "walk-in", w.UserID)
}

func TestCreateWallet_Duplicate(t *testing.T) {
	e := newEngine(t)
	e.openWallet(t, "alice", 0)

	_, err := e.svc.CreateWallet(context.Background(), ports.CreateWalletRequest{UserID: "alice", Email: "a@example.com"})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyExists))
}

func TestCreateWallet_Validation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: "alice", InitialBalance: -1})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	e.approve(t, "alice")
	_, err = e.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: "alice", Currency: "XYZ"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	w, err := e.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: "alice", Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyEUR, w.Currency)
}

func TestCreateWallet_GatewayFailurePersistsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockPaymentGateway(ctrl)
	e := newEngine(t, withGateway(gw))
	e.approve(t, "alice")

	gw.EXPECT().CreateCustomer(gomock.Any(), "a@example.com", gomock.Any()).
		Return("", apperror.ErrGatewayUnavailable(errors.New("timeout")))

	_, err := e.svc.CreateWallet(context.Background(), ports.CreateWalletRequest{UserID: "alice", Email: "a@example.com", InitialBalance: 10})
	assert.True(t, apperror.HasCode(err, apperror.CodeGatewayUnavailable))

	_, err = e.svc.GetBalance(context.Background(), "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestListTransactions_NewestFirstPaged(t *testing.T) {
	e := newEngine(t)
	e.openWallet(t, "alice", 10000)
	e.openWallet(t, "bob", 0)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := e.svc.Transfer(ctx, ports.TransferRequest{FromUserID: "alice", ToUserID: "bob", Amount: int64(i * 100)})
		require.NoError(t, err)
	}

	page, total, err := e.svc.ListTransactions(ctx, ports.ListTransactionsRequest{UserID: "alice", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(500), page[0].Amount)
	assert.Equal(t, int64(400), page[1].Amount)

	typ := domain.TransactionTypeDeposit
	deposits, total, err := e.svc.ListTransactions(ctx, ports.ListTransactionsRequest{UserID: "alice", Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, deposits, 1)

	_, _, err = e.svc.ListTransactions(ctx, ports.ListTransactionsRequest{UserID: "ghost"})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}

func TestWalletAndTransaction_JSONRoundTrip(t *testing.T) {
	e := newEngine(t)
	w := e.openWallet(t, "alice", 1234)

	data, err := json.Marshal(w)
	require.NoError(t, err)
	var w2 domain.Wallet
	require.NoError(t, json.Unmarshal(data, &w2))
	assert.True(t, w.CreatedAt.Equal(w2.CreatedAt))
	w2.CreatedAt, w2.UpdatedAt = w.CreatedAt, w.UpdatedAt
	assert.Equal(t, *w, w2)

	txn := e.history(t, "alice")[0]
	data, err = json.Marshal(txn)
	require.NoError(t, err)
	var txn2 domain.Transaction
	require.NoError(t, json.Unmarshal(data, &txn2))
	txn2.CreatedAt, txn2.UpdatedAt = txn.CreatedAt, txn.UpdatedAt
	assert.Equal(t, txn, txn2)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, domain.Notification) error {
	return errors.New("smtp down")
}

func TestNotificationFailureDoesNotAffectResult(t *testing.T) {
	e := newEngine(t, withNotifier(failingNotifier{}))
	e.openWallet(t, "alice", 100)
	e.openWallet(t, "bob", 0)

	_, err := e.svc.Transfer(context.Background(), ports.TransferRequest{FromUserID: "alice", ToUserID: "bob", Amount: 100})
	require.NoError(t, err)
	e.svc.Wait()
	assert.Equal(t, int64(100), e.balance(t, "bob"))
}

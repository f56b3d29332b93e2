package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"digital-wallet/config"
	"digital-wallet/internal/adapter/gateway/simulated"
	"digital-wallet/internal/adapter/storage/memory"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// recordingNotifier collects notifications for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	r.sent = append(r.sent, n)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) kinds(recipient string) []domain.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NotificationKind
	for _, n := range r.sent {
		if n.Recipient == recipient {
			out = append(out, n.Kind)
		}
	}
	return out
}

type engine struct {
	svc      *WalletServiceImpl
	store    *memory.Store
	txns     *memory.TransactionRepo
	recon    *memory.ReconciliationRepo
	elig     *EligibilityServiceImpl
	notifier *recordingNotifier
}

type engineOption func(*WalletDeps)

func withGateway(gw ports.PaymentGateway) engineOption {
	return func(d *WalletDeps) { d.Gateway = gw }
}

func withWallets(fn func(ports.WalletRepository) ports.WalletRepository) engineOption {
	return func(d *WalletDeps) { d.Wallets = fn(d.Wallets) }
}

func withInFlight(g ports.InFlightGuard) engineOption {
	return func(d *WalletDeps) { d.InFlight = g }
}

func withNotifier(n ports.Notifier) engineOption {
	return func(d *WalletDeps) { d.Notifier = n }
}

func simulatedGateway() *simulated.Gateway {
	policy := simulated.NewPolicy(config.DefaultTestMethodIDs, config.DefaultDeclineMethodIDs)
	return simulated.New(nil, policy, zerolog.Nop())
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()
	store := memory.NewStore()
	e := &engine{
		store:    store,
		txns:     memory.NewTransactionRepo(store),
		recon:    memory.NewReconciliationRepo(store),
		elig:     NewEligibilityService(memory.NewEligibilityRepo(store), false, zerolog.Nop()),
		notifier: &recordingNotifier{},
	}
	deps := WalletDeps{
		Wallets:        memory.NewWalletRepo(store),
		Transactions:   e.txns,
		Methods:        memory.NewPaymentMethodRepo(store),
		Idempotency:    memory.NewIdempotencyRepo(store),
		Reconciliation: e.recon,
		Transactor:     store,
		Gateway:        simulatedGateway(),
		Eligibility:    e.elig,
		QR:             NewQRTokenService("qr-test-secret", 15*time.Minute, "wallet-test"),
		Notifier:       e.notifier,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.svc = NewWalletService(deps, WalletSettings{DefaultCurrency: domain.CurrencyUSD}, zerolog.Nop())
	t.Cleanup(e.svc.Wait)
	return e
}

func (e *engine) approve(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.elig.Submit(ctx, userID)
	require.NoError(t, err)
	_, err = e.elig.UpdateStatus(ctx, userID, domain.EligibilityApproved, nil)
	require.NoError(t, err)
}

func (e *engine) openWallet(t *testing.T, userID string, initial int64) *domain.Wallet {
	t.Helper()
	e.approve(t, userID)
	w, err := e.svc.CreateWallet(context.Background(), ports.CreateWalletRequest{
		UserID: userID, Email: userID + "@example.com", InitialBalance: initial,
	})
	require.NoError(t, err)
	return w
}

func (e *engine) addMethod(t *testing.T, userID, methodRef string) {
	t.Helper()
	_, err := e.svc.AddPaymentMethod(context.Background(), userID, methodRef)
	require.NoError(t, err)
}

func (e *engine) balance(t *testing.T, userID string) int64 {
	t.Helper()
	w, err := e.svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (e *engine) history(t *testing.T, userID string) []domain.Transaction {
	t.Helper()
	txns, _, err := e.svc.ListTransactions(context.Background(), ports.ListTransactionsRequest{UserID: userID, PageSize: maxPageSize})
	require.NoError(t, err)
	return txns
}

// ledgerBalance recomputes a wallet's balance from its completed transactions.
func ledgerBalance(txns []domain.Transaction, walletID uuid.UUID) int64 {
	var sum int64
	for _, t := range txns {
		if t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if t.ToWalletID != nil && *t.ToWalletID == walletID {
			sum += t.Amount
		}
		if t.FromWalletID != nil && *t.FromWalletID == walletID {
			sum -= t.Amount
		}
	}
	return sum
}

// failingDeltas fails every ApplyDelta after the first n calls.
type failingDeltas struct {
	ports.WalletRepository
	mu    sync.Mutex
	left  int
	cause error
}

func (f *failingDeltas) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (*domain.Wallet, error) {
	f.mu.Lock()
	if f.left <= 0 {
		f.mu.Unlock()
		return nil, f.cause
	}
	f.left--
	f.mu.Unlock()
	return f.WalletRepository.ApplyDelta(ctx, tx, id, delta)
}

// onLogMessage runs fn once, synchronously, when a log line with msg is
// written. fn may itself log msg again.
type onLogMessage struct {
	msg   string
	fn    func()
	fired atomic.Bool
}

func (h *onLogMessage) Run(_ *zerolog.Event, _ zerolog.Level, msg string) {
	if msg == h.msg && h.fired.CompareAndSwap(false, true) {
		h.fn()
	}
}

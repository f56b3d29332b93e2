package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.WalletRepository         = (*WalletRepo)(nil)
	_ ports.TransactionRepository    = (*TransactionRepo)(nil)
	_ ports.IdempotencyRepository    = (*IdempotencyRepo)(nil)
	_ ports.PaymentMethodRepository  = (*PaymentMethodRepo)(nil)
	_ ports.EligibilityRepository    = (*EligibilityRepo)(nil)
	_ ports.ReconciliationRepository = (*ReconciliationRepo)(nil)
	_ ports.AuditRepository          = (*AuditRepo)(nil)
	_ ports.DBTransactor             = (*Store)(nil)
	_ ports.HealthChecker            = (*Store)(nil)
)

func seedWallet(t *testing.T, s *Store, userID string, balance int64) *domain.Wallet {
	t.Helper()
	now := time.Now().UTC()
	w := &domain.Wallet{
		ID: uuid.New(), UserID: userID, Balance: balance, Currency: domain.CurrencyUSD,
		CustomerRef: "cus_" + userID, Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, NewWalletRepo(s).Create(ctx, tx, w))
	require.NoError(t, tx.Commit(ctx))
	return w
}

func TestWalletRepo_WritesInvisibleUntilCommit(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	w := seedWallet(t, s, "alice", 1000)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	updated, err := repo.ApplyDelta(ctx, tx, w.ID, -400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), updated.Balance)

	committed, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), committed.Balance)

	require.NoError(t, tx.Commit(ctx))
	committed, err = repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), committed.Balance)
	assert.Equal(t, int64(2), committed.Version)
}

func TestWalletRepo_RollbackDiscards(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	w := seedWallet(t, s, "alice", 1000)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.ApplyDelta(ctx, tx, w.ID, 500)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	got, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance)
}

func TestWalletRepo_ApplyDeltaGuards(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	w := seedWallet(t, s, "alice", 100)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = repo.ApplyDelta(ctx, tx, w.ID, -101)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = repo.ApplyDelta(ctx, tx, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := repo.ApplyDelta(ctx, tx, w.ID, -100)
	require.NoError(t, err)
	assert.Zero(t, got.Balance)
}

func TestWalletRepo_DuplicateUser(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	seedWallet(t, s, "alice", 0)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	err = repo.Create(ctx, tx, &domain.Wallet{ID: uuid.New(), UserID: "alice", CustomerRef: "cus_other"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestWalletRepo_ConcurrentCreateSameUser(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if err != nil {
				return
			}
			defer tx.Rollback(ctx) //nolint:errcheck
			w := &domain.Wallet{ID: uuid.New(), UserID: "bob", CustomerRef: "cus_" + uuid.NewString()}
			if repo.Create(ctx, tx, w) != nil {
				return
			}
			if tx.Commit(ctx) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestRowLock_BlocksUntilCommit(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	w := seedWallet(t, s, "alice", 1000)
	ctx := context.Background()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, first, w.ID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	second, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(waitCtx, second, w.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = repo.ApplyDelta(ctx, first, w.ID, -250)
	require.NoError(t, err)
	require.NoError(t, first.Commit(ctx))

	locked, err := repo.GetByIDForUpdate(ctx, second, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), locked.Balance)
	require.NoError(t, second.Rollback(ctx))
}

func TestWalletRepo_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	s := NewStore()
	repo := NewWalletRepo(s)
	w := seedWallet(t, s, "alice", 1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if err != nil {
				return
			}
			defer tx.Rollback(ctx) //nolint:errcheck
			if _, err := repo.ApplyDelta(ctx, tx, w.ID, -100); err != nil {
				return
			}
			if tx.Commit(ctx) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, succeeded)
	assert.Zero(t, got.Balance)
}

func newPendingQR(toWallet uuid.UUID, paymentID string) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID: uuid.New(), Type: domain.TransactionTypeTransfer, Amount: 300, Currency: domain.CurrencyUSD,
		ToWalletID: &toWallet, Status: domain.TransactionStatusPending,
		Metadata:  map[string]string{domain.MetaPaymentID: paymentID},
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestTransactionRepo_PendingLifecycle(t *testing.T) {
	s := NewStore()
	repo := NewTransactionRepo(s)
	recipient := seedWallet(t, s, "bob", 0)
	payer := seedWallet(t, s, "alice", 500)
	ctx := context.Background()

	txn := newPendingQR(recipient.ID, "01JQRPAYMENT")
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, txn))
	require.NoError(t, tx.Commit(ctx))

	found, err := repo.FindPendingByMetadata(ctx, domain.MetaPaymentID, "01JQRPAYMENT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, txn.ID, found.ID)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.AttachSource(ctx, tx, txn.ID, payer.ID, "pi_123"))
	require.NoError(t, repo.UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusCompleted, nil))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusFailed, nil), domain.ErrInvalidTransition)
	require.NoError(t, tx.Commit(ctx))

	byRef, err := repo.GetByExternalRef(ctx, "pi_123")
	require.NoError(t, err)
	require.NotNil(t, byRef)
	assert.Equal(t, domain.TransactionStatusCompleted, byRef.Status)
	assert.Equal(t, payer.ID, *byRef.FromWalletID)

	gone, err := repo.FindPendingByMetadata(ctx, domain.MetaPaymentID, "01JQRPAYMENT")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTransactionRepo_ReturnsCopies(t *testing.T) {
	s := NewStore()
	repo := NewTransactionRepo(s)
	recipient := seedWallet(t, s, "bob", 0)
	ctx := context.Background()

	txn := newPendingQR(recipient.ID, "p1")
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, txn))
	require.NoError(t, tx.Commit(ctx))

	got, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	got.Metadata[domain.MetaPaymentID] = "tampered"

	again, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", again.PaymentID())
}

func TestTransactionRepo_ListByWalletNewestFirst(t *testing.T) {
	s := NewStore()
	repo := NewTransactionRepo(s)
	w := seedWallet(t, s, "alice", 0)
	other := seedWallet(t, s, "bob", 0)
	ctx := context.Background()

	base := time.Now().UTC()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		to := w.ID
		if i == 2 {
			to = other.ID
		}
		txn := &domain.Transaction{
			ID: uuid.New(), Type: domain.TransactionTypeDeposit, Amount: int64(100 + i),
			Currency: domain.CurrencyUSD, ToWalletID: &to, Status: domain.TransactionStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, tx, txn))
		require.NoError(t, tx.Commit(ctx))
		if i != 2 {
			ids = append(ids, txn.ID)
		}
	}

	page, total, err := repo.ListByWallet(ctx, ports.TransactionListParams{WalletID: w.ID, Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 3)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)
	assert.Equal(t, ids[1], page[2].ID)

	page, _, err = repo.ListByWallet(ctx, ports.TransactionListParams{WalletID: w.ID, Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, _, err = repo.ListByWallet(ctx, ports.TransactionListParams{WalletID: w.ID, Page: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestIdempotencyRepo_DuplicateKeyFailsCommit(t *testing.T) {
	s := NewStore()
	repo := NewIdempotencyRepo(s)
	ctx := context.Background()
	entry := &domain.IdempotencyLog{Key: "alice:deposit:k1", TransactionID: uuid.New(), CreatedAt: time.Now()}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, entry))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tx, entry))
	assert.ErrorIs(t, tx.Commit(ctx), domain.ErrAlreadyExists)

	got, err := repo.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, entry.TransactionID, got.TransactionID)
}

func TestRepos_RejectClosedTx(t *testing.T) {
	s := NewStore()
	other := NewStore()
	ctx := context.Background()
	tx, err := other.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	_, err = NewWalletRepo(s).GetByIDForUpdate(ctx, tx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

func TestPaymentMethodRepo(t *testing.T) {
	s := NewStore()
	repo := NewPaymentMethodRepo(s)
	ctx := context.Background()
	m := &domain.PaymentMethod{ID: uuid.New(), UserID: "alice", MethodRef: "pm_card_visa", Kind: "card", CreatedAt: time.Now()}

	require.NoError(t, repo.Create(ctx, m))
	assert.ErrorIs(t, repo.Create(ctx, m), domain.ErrAlreadyExists)

	list, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, "pm_card_visa"))
	got, err := repo.GetByMethodRef(ctx, "pm_card_visa")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEligibilityRepo_UpsertKeepsCreatedAt(t *testing.T) {
	s := NewStore()
	repo := NewEligibilityRepo(s)
	ctx := context.Background()
	first := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Upsert(ctx, &domain.EligibilityRecord{UserID: "alice", Status: domain.EligibilityPending, CreatedAt: first}))
	require.NoError(t, repo.Upsert(ctx, &domain.EligibilityRecord{UserID: "alice", Status: domain.EligibilityApproved, CreatedAt: time.Now()}))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.EligibilityApproved, got.Status)
	assert.True(t, got.CreatedAt.Equal(first))
}

func TestReconciliationRepo_ListUnresolved(t *testing.T) {
	s := NewStore()
	repo := NewReconciliationRepo(s)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.ReconciliationEntry{ID: uuid.New(), ExternalRef: "po_1"}))
	require.NoError(t, repo.Create(ctx, &domain.ReconciliationEntry{ID: uuid.New(), ExternalRef: "po_2", Resolved: true}))
	require.NoError(t, repo.Create(ctx, &domain.ReconciliationEntry{ID: uuid.New(), ExternalRef: "pi_3"}))

	open, err := repo.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "po_1", open[0].ExternalRef)

	limited, err := repo.ListUnresolved(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

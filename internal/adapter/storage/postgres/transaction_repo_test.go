package postgres

import (
	"context"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransfer() *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	from, to := uuid.New(), uuid.New()
	ref := "pi_test_123"
	return &domain.Transaction{
		ID:           uuid.New(),
		Type:         domain.TransactionTypeTransfer,
		Amount:       2500,
		Currency:     domain.CurrencyUSD,
		FromWalletID: &from,
		ToWalletID:   &to,
		Status:       domain.TransactionStatusCompleted,
		ExternalRef:  &ref,
		Metadata:     map[string]string{domain.MetaPaymentID: "01J0000000000000000000000"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func txColumns() []string {
	return []string{"id", "type", "amount", "currency", "from_wallet_id", "to_wallet_id", "status",
		"external_ref", "metadata", "failure_reason", "created_at", "updated_at"}
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	meta, _ := encodeMetadata(t.Metadata)
	return pgxmock.NewRows(txColumns()).AddRow(
		t.ID, t.Type, t.Amount, t.Currency, t.FromWalletID, t.ToWalletID, t.Status,
		t.ExternalRef, meta, t.FailureReason, t.CreatedAt, t.UpdatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.Type, txn.Amount, txn.Currency, txn.FromWalletID, txn.ToWalletID,
			txn.Status, txn.ExternalRef, pgxmock.AnyArg(), txn.FailureReason, txn.CreatedAt, txn.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_RejectsInvalidShape(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()
	txn.FromWalletID = nil

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_DecodesMetadata(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, *txn, *result)
	assert.Equal(t, "01J0000000000000000000000", result.PaymentID())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransactionRepo_FindPendingByMetadata(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()
	txn.Status = domain.TransactionStatusPending
	txn.FromWalletID = nil
	txn.ExternalRef = nil

	mock.ExpectQuery("SELECT .+ FROM transactions\\s+WHERE status = 'pending' AND metadata ->> \\$1 = \\$2").
		WithArgs(domain.MetaPaymentID, txn.PaymentID()).
		WillReturnRows(txRow(txn))

	result, err := repo.FindPendingByMetadata(context.Background(), domain.MetaPaymentID, txn.PaymentID())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Nil(t, result.FromWalletID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByExternalRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()

	mock.ExpectQuery("SELECT .+ FROM transactions\\s+WHERE external_ref = \\$1").
		WithArgs(*txn.ExternalRef).
		WillReturnRows(txRow(txn))

	result, err := repo.GetByExternalRef(context.Background(), *txn.ExternalRef)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, result.ID)
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()
	reason := "card_declined"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.TransactionStatusFailed, &reason, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(context.Background(), tx, id, domain.TransactionStatusFailed, &reason))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus_NotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.TransactionStatusCompleted, (*string)(nil), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), tx, id, domain.TransactionStatusCompleted, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransactionRepo_AttachSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id, payer := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET from_wallet_id").
		WithArgs(payer, "pi_abc", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.AttachSource(context.Background(), tx, id, payer, "pi_abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransfer()
	walletID := *txn.FromWalletID
	status := domain.TransactionStatusCompleted

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC").
		WithArgs(walletID, status, 20, 0).
		WillReturnRows(txRow(txn))

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Status:   &status,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

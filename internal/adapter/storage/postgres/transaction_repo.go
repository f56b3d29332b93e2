package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const txColumnList = `id, type, amount, currency, from_wallet_id, to_wallet_id, status,
		external_ref, metadata, failure_reason, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO transactions (` + txColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.Type, t.Amount, t.Currency, t.FromWalletID, t.ToWalletID,
		t.Status, t.ExternalRef, meta, t.FailureReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + txColumnList + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction and locks its row.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + txColumnList + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// GetByExternalRef fetches the newest transaction carrying a processor reference.
func (r *TransactionRepo) GetByExternalRef(ctx context.Context, ref string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumnList + ` FROM transactions
		WHERE external_ref = $1 ORDER BY created_at DESC LIMIT 1`
	return scanTransaction(r.pool.QueryRow(ctx, query, ref))
}

// FindPendingByMetadata fetches the newest pending transaction whose metadata[key] = value.
func (r *TransactionRepo) FindPendingByMetadata(ctx context.Context, key, value string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumnList + ` FROM transactions
		WHERE status = 'pending' AND metadata ->> $1 = $2
		ORDER BY created_at DESC LIMIT 1`
	return scanTransaction(r.pool.QueryRow(ctx, query, key, value))
}

// UpdateStatus moves a pending transaction to status.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, reason *string) error {
	query := `UPDATE transactions SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, status, reason, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s to %s: %w", id, status, domain.ErrInvalidTransition)
	}
	return nil
}

// AttachSource records the payer wallet and processor reference on a pending transaction.
func (r *TransactionRepo) AttachSource(ctx context.Context, tx pgx.Tx, id uuid.UUID, fromWalletID uuid.UUID, externalRef string) error {
	query := `UPDATE transactions SET from_wallet_id = $1, external_ref = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, fromWalletID, externalRef, id)
	if err != nil {
		return fmt.Errorf("attach transaction source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// ListByWallet fetches transactions where the wallet is source or destination, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(from_wallet_id = $%d OR to_wallet_id = $%d)", argIdx, argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, txColumnList, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var meta []byte
	err := row.Scan(
		&t.ID, &t.Type, &t.Amount, &t.Currency, &t.FromWalletID, &t.ToWalletID,
		&t.Status, &t.ExternalRef, &meta, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if len(t.Metadata) == 0 {
			t.Metadata = nil
		}
	}
	return t, nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

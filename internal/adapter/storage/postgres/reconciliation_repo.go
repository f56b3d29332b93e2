package postgres

import (
	"context"
	"fmt"

	"digital-wallet/internal/core/domain"
)

// ReconciliationRepo implements ports.ReconciliationRepository.
type ReconciliationRepo struct {
	pool Pool
}

// NewReconciliationRepo creates a new ReconciliationRepo.
func NewReconciliationRepo(pool Pool) *ReconciliationRepo {
	return &ReconciliationRepo{pool: pool}
}

// Create writes an entry outside any ledger transaction, so it survives the failed unit.
func (r *ReconciliationRepo) Create(ctx context.Context, e *domain.ReconciliationEntry) error {
	query := `INSERT INTO reconciliation_entries
		(id, operation, external_ref, wallet_id, transaction_id, amount, currency, error, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.Operation, e.ExternalRef, e.WalletID, e.TransactionID,
		e.Amount, e.Currency, e.Error, e.Resolved, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reconciliation entry: %w", err)
	}
	return nil
}

// ListUnresolved returns the oldest unresolved entries first.
func (r *ReconciliationRepo) ListUnresolved(ctx context.Context, limit int) ([]domain.ReconciliationEntry, error) {
	query := `SELECT id, operation, external_ref, wallet_id, transaction_id, amount, currency, error, resolved, created_at
		FROM reconciliation_entries WHERE resolved = FALSE ORDER BY created_at LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ReconciliationEntry
	for rows.Next() {
		var e domain.ReconciliationEntry
		if err := rows.Scan(
			&e.ID, &e.Operation, &e.ExternalRef, &e.WalletID, &e.TransactionID,
			&e.Amount, &e.Currency, &e.Error, &e.Resolved, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reconciliation entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"digital-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const methodColumnList = `id, user_id, method_ref, kind, card, is_default, created_at`

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// Create registers a method. A duplicate method_ref fails with domain.ErrAlreadyExists.
func (r *PaymentMethodRepo) Create(ctx context.Context, m *domain.PaymentMethod) error {
	var card []byte
	if m.Card != nil {
		b, err := json.Marshal(m.Card)
		if err != nil {
			return fmt.Errorf("encode card: %w", err)
		}
		card = b
	}

	query := `INSERT INTO payment_methods (` + methodColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, m.ID, m.UserID, m.MethodRef, m.Kind, card, m.IsDefault, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment method %s: %w", m.MethodRef, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

// GetByMethodRef fetches a method by its processor reference.
func (r *PaymentMethodRepo) GetByMethodRef(ctx context.Context, methodRef string) (*domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumnList + ` FROM payment_methods WHERE method_ref = $1`

	m, err := scanPaymentMethod(r.pool.QueryRow(ctx, query, methodRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return m, nil
}

// ListByUser returns the user's methods, oldest first.
func (r *PaymentMethodRepo) ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	query := `SELECT ` + methodColumnList + ` FROM payment_methods WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		m, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		methods = append(methods, *m)
	}
	return methods, rows.Err()
}

// Delete removes a method by reference. Missing rows are not an error.
func (r *PaymentMethodRepo) Delete(ctx context.Context, methodRef string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM payment_methods WHERE method_ref = $1`, methodRef); err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	return nil
}

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	m := &domain.PaymentMethod{}
	var card []byte
	if err := row.Scan(&m.ID, &m.UserID, &m.MethodRef, &m.Kind, &card, &m.IsDefault, &m.CreatedAt); err != nil {
		return nil, err
	}
	if len(card) > 0 {
		m.Card = &domain.CardSummary{}
		if err := json.Unmarshal(card, m.Card); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
	}
	return m, nil
}

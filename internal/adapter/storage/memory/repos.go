package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository over a Store.
type WalletRepo struct{ s *Store }

// NewWalletRepo creates a WalletRepo.
func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, userKey(w.UserID)); err != nil {
		return err
	}
	if err := mt.lock(ctx, walletKey(w.ID)); err != nil {
		return err
	}
	r.s.mu.Lock()
	_, taken := r.s.walletByUser[w.UserID]
	r.s.mu.Unlock()
	if taken {
		return fmt.Errorf("wallet for user %s: %w", w.UserID, domain.ErrAlreadyExists)
	}
	mt.wallets[w.ID] = *w
	return nil
}

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.walletByUser[userID]
	if !ok {
		return nil, nil
	}
	w := r.s.wallets[id]
	return &w, nil
}

func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletKey(id)); err != nil {
		return nil, err
	}
	w, ok := mt.currentWallet(id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletKey(id)); err != nil {
		return nil, err
	}
	w, ok := mt.currentWallet(id)
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", id, domain.ErrNotFound)
	}
	if w.Balance+delta < 0 {
		return nil, fmt.Errorf("wallet %s delta %d: %w", id, delta, domain.ErrInsufficientFunds)
	}
	w.Balance += delta
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	mt.wallets[id] = w
	return &w, nil
}

// TransactionRepo implements ports.TransactionRepository over a Store.
type TransactionRepo struct{ s *Store }

// NewTransactionRepo creates a TransactionRepo.
func NewTransactionRepo(s *Store) *TransactionRepo { return &TransactionRepo{s: s} }

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	if err := mt.lock(ctx, txKey(t.ID)); err != nil {
		return err
	}
	if _, exists := mt.currentTx(t.ID); exists {
		return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrAlreadyExists)
	}
	mt.stageTx(*cloneTx(*t))
	return nil
}

func (r *TransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.txns[id]
	if !ok {
		return nil, nil
	}
	return cloneTx(rec.tx), nil
}

func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, txKey(id)); err != nil {
		return nil, err
	}
	t, ok := mt.currentTx(id)
	if !ok {
		return nil, nil
	}
	return cloneTx(t), nil
}

func (r *TransactionRepo) GetByExternalRef(_ context.Context, ref string) (*domain.Transaction, error) {
	return r.newestWhere(func(t *domain.Transaction) bool {
		return t.ExternalRef != nil && *t.ExternalRef == ref
	}), nil
}

func (r *TransactionRepo) FindPendingByMetadata(_ context.Context, key, value string) (*domain.Transaction, error) {
	return r.newestWhere(func(t *domain.Transaction) bool {
		return t.Status == domain.TransactionStatusPending && t.Metadata[key] == value
	}), nil
}

func (r *TransactionRepo) newestWhere(match func(*domain.Transaction) bool) *domain.Transaction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *txRecord
	for _, rec := range r.s.txns {
		rec := rec
		if !match(&rec.tx) {
			continue
		}
		if best == nil || rec.seq > best.seq {
			best = &rec
		}
	}
	if best == nil {
		return nil
	}
	return cloneTx(best.tx)
}

func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, reason *string) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, txKey(id)); err != nil {
		return err
	}
	t, ok := mt.currentTx(id)
	if !ok || !t.CanTransition(status) {
		return fmt.Errorf("transaction %s to %s: %w", id, status, domain.ErrInvalidTransition)
	}
	t = *cloneTx(t)
	t.Status = status
	t.FailureReason = reason
	t.UpdatedAt = time.Now().UTC()
	mt.stageTx(t)
	return nil
}

func (r *TransactionRepo) AttachSource(ctx context.Context, tx pgx.Tx, id uuid.UUID, fromWalletID uuid.UUID, externalRef string) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, txKey(id)); err != nil {
		return err
	}
	t, ok := mt.currentTx(id)
	if !ok || t.Status != domain.TransactionStatusPending {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrInvalidTransition)
	}
	t = *cloneTx(t)
	t.FromWalletID = &fromWalletID
	t.ExternalRef = &externalRef
	t.UpdatedAt = time.Now().UTC()
	mt.stageTx(t)
	return nil
}

func (r *TransactionRepo) ListByWallet(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.Lock()
	var matched []txRecord
	for _, rec := range r.s.txns {
		t := rec.tx
		if !t.Involves(params.WalletID) {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		matched = append(matched, rec)
	}
	r.s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
			return a.tx.CreatedAt.After(b.tx.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if params.PageSize <= 0 || end > len(matched) {
		end = len(matched)
	}

	out := make([]domain.Transaction, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, *cloneTx(rec.tx))
	}
	return out, total, nil
}

// IdempotencyRepo implements ports.IdempotencyRepository over a Store.
type IdempotencyRepo struct{ s *Store }

// NewIdempotencyRepo creates an IdempotencyRepo.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo { return &IdempotencyRepo{s: s} }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.IdempotencyLog) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, idemKey(entry.Key)); err != nil {
		return err
	}
	mt.idem[entry.Key] = *entry
	return nil
}

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

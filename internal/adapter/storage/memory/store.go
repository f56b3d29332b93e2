// Package memory is an in-process implementation of the storage ports.
//
// It mirrors the Postgres adapter's locking model: writes and ForUpdate reads
// take a per-row lock held until the owning transaction commits or rolls back,
// and staged writes become visible to other readers only on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction it did not begin.
var ErrForeignTx = errors.New("memory: transaction was not started by this store")

type txRecord struct {
	tx  domain.Transaction
	seq int64
}

// Store holds all committed state.
type Store struct {
	mu sync.Mutex

	wallets      map[uuid.UUID]domain.Wallet
	walletByUser map[string]uuid.UUID
	customers    map[string]uuid.UUID
	txns         map[uuid.UUID]txRecord
	methods      map[string]domain.PaymentMethod
	eligibility  map[string]domain.EligibilityRecord
	idempotency  map[string]domain.IdempotencyLog
	recon        []domain.ReconciliationEntry
	audit        []domain.AuditLog

	locks map[string]chan struct{}
	seq   int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]domain.Wallet),
		walletByUser: make(map[string]uuid.UUID),
		customers:    make(map[string]uuid.UUID),
		txns:         make(map[uuid.UUID]txRecord),
		methods:      make(map[string]domain.PaymentMethod),
		eligibility:  make(map[string]domain.EligibilityRecord),
		idempotency:  make(map[string]domain.IdempotencyLog),
		locks:        make(map[string]chan struct{}),
	}
}

// Begin starts a transaction. It satisfies ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{
		store:   s,
		held:    make(map[string]bool),
		wallets: make(map[uuid.UUID]domain.Wallet),
		txns:    make(map[uuid.UUID]domain.Transaction),
		idem:    make(map[string]domain.IdempotencyLog),
	}, nil
}

// Ping always succeeds. It lets the store stand in for a health-checked dependency.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name returns the dependency name.
func (s *Store) Name() string { return "memory" }

// acquire blocks until key is free or ctx ends.
func (s *Store) acquire(ctx context.Context, key string) error {
	for {
		s.mu.Lock()
		ch, busy := s.locks[key]
		if !busy {
			s.locks[key] = make(chan struct{})
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for row lock %s: %w", key, ctx.Err())
		}
	}
}

// releaseLocked frees key. Caller holds s.mu.
func (s *Store) releaseLocked(key string) {
	if ch, ok := s.locks[key]; ok {
		delete(s.locks, key)
		close(ch)
	}
}

func walletKey(id uuid.UUID) string { return "wallet:" + id.String() }
func txKey(id uuid.UUID) string     { return "tx:" + id.String() }
func userKey(userID string) string  { return "user:" + userID }
func idemKey(key string) string     { return "idem:" + key }

// memTx is the store's pgx.Tx. Only Commit and Rollback are implemented;
// the repositories never issue SQL through it.
type memTx struct {
	pgx.Tx

	store *Store
	held  map[string]bool
	done  bool

	wallets map[uuid.UUID]domain.Wallet
	txns    map[uuid.UUID]domain.Transaction
	idem    map[string]domain.IdempotencyLog
	order   []uuid.UUID
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, ErrForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	return nil
}

// Commit validates uniqueness, publishes staged rows and releases every lock.
func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	defer t.finishLocked()

	for id, w := range t.wallets {
		if existing, ok := s.walletByUser[w.UserID]; ok && existing != id {
			return fmt.Errorf("wallet for user %s: %w", w.UserID, domain.ErrAlreadyExists)
		}
		if existing, ok := s.customers[w.CustomerRef]; ok && existing != id {
			return fmt.Errorf("customer %s: %w", w.CustomerRef, domain.ErrAlreadyExists)
		}
	}
	for key := range t.idem {
		if _, ok := s.idempotency[key]; ok {
			return fmt.Errorf("idempotency key %q: %w", key, domain.ErrAlreadyExists)
		}
	}

	for id, w := range t.wallets {
		s.wallets[id] = w
		s.walletByUser[w.UserID] = id
		s.customers[w.CustomerRef] = id
	}
	for _, id := range t.order {
		rec, exists := s.txns[id]
		if !exists {
			s.seq++
			rec.seq = s.seq
		}
		rec.tx = t.txns[id]
		s.txns[id] = rec
	}
	for key, entry := range t.idem {
		s.idempotency[key] = entry
	}
	return nil
}

// Rollback discards staged rows and releases every lock.
func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.finishLocked()
	return nil
}

func (t *memTx) finishLocked() {
	for key := range t.held {
		t.store.releaseLocked(key)
	}
	t.held = nil
	t.done = true
}

// stageTx records a transaction write, keeping first-write order for commit.
func (t *memTx) stageTx(tx domain.Transaction) {
	if _, seen := t.txns[tx.ID]; !seen {
		t.order = append(t.order, tx.ID)
	}
	t.txns[tx.ID] = tx
}

// currentWallet returns the wallet as this transaction sees it.
func (t *memTx) currentWallet(id uuid.UUID) (domain.Wallet, bool) {
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	w, ok := t.store.wallets[id]
	return w, ok
}

// currentTx returns the transaction as this transaction sees it.
func (t *memTx) currentTx(id uuid.UUID) (domain.Transaction, bool) {
	if tx, ok := t.txns[id]; ok {
		return tx, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	rec, ok := t.store.txns[id]
	return rec.tx, ok
}

func cloneTx(tx domain.Transaction) *domain.Transaction {
	out := tx
	if tx.Metadata != nil {
		out.Metadata = make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			out.Metadata[k] = v
		}
	}
	if tx.FromWalletID != nil {
		id := *tx.FromWalletID
		out.FromWalletID = &id
	}
	if tx.ToWalletID != nil {
		id := *tx.ToWalletID
		out.ToWalletID = &id
	}
	if tx.ExternalRef != nil {
		ref := *tx.ExternalRef
		out.ExternalRef = &ref
	}
	if tx.FailureReason != nil {
		reason := *tx.FailureReason
		out.FailureReason = &reason
	}
	return &out
}

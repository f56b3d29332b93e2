package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// reservations tracks funds promised to payouts that are still in flight.
// Entries are added and checked while the wallet row lock is held.
type reservations struct {
	mu   sync.Mutex
	held map[uuid.UUID]int64
}

func newReservations() *reservations {
	return &reservations{held: make(map[uuid.UUID]int64)}
}

func (r *reservations) amount(walletID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[walletID]
}

func (r *reservations) add(walletID uuid.UUID, amount int64) {
	r.mu.Lock()
	r.held[walletID] += amount
	r.mu.Unlock()
}

func (r *reservations) release(walletID uuid.UUID, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held[walletID] -= amount
	if r.held[walletID] <= 0 {
		delete(r.held, walletID)
	}
}

// hold is one reservation taken by reserve. release is safe to call more
// than once; the debit path releases it under the wallet row lock.
type hold struct {
	r        *reservations
	walletID uuid.UUID
	amount   int64
	once     sync.Once
}

func (h *hold) release() {
	h.once.Do(func() { h.r.release(h.walletID, h.amount) })
}

// localInFlight is the process-local ports.InFlightGuard used without Redis.
type localInFlight struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func newLocalInFlight() *localInFlight {
	return &localInFlight{keys: make(map[string]time.Time), now: time.Now}
}

func (g *localInFlight) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *localInFlight) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
	return nil
}

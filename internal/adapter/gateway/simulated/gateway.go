// Package simulated serves the processor's published test payment methods
// without a network round-trip, and delegates everything else to a real
// gateway.
package simulated

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"
	"digital-wallet/pkg/idgen"

	"github.com/rs/zerolog"
)

// Policy decides which method refs are simulated.
type Policy struct {
	approve map[string]bool
	decline map[string]bool
	// All routes every call to the simulation, including customers and payouts.
	All bool
}

// NewPolicy builds a Policy from approving and declining method refs.
func NewPolicy(approve, decline []string) Policy {
	p := Policy{approve: make(map[string]bool, len(approve)), decline: make(map[string]bool, len(decline))}
	for _, id := range approve {
		p.approve[id] = true
	}
	for _, id := range decline {
		p.decline[id] = true
	}
	return p
}

// Handles reports whether methodRef is served locally.
func (p Policy) Handles(methodRef string) bool {
	if methodRef == "" {
		return false
	}
	return p.All || p.approve[methodRef] || p.decline[methodRef]
}

func (p Policy) declines(methodRef string) bool { return p.decline[methodRef] }

// DefaultRetention is how long a simulated intent is kept after its last change.
const DefaultRetention = 24 * time.Hour

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetention sets how long simulated intents are kept after their last change.
func WithRetention(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.retention = d
		}
	}
}

type simIntent struct {
	pi      domain.PaymentIntent
	touched time.Time
}

// Gateway decorates a real ports.PaymentGateway. next may be nil when
// Policy.All is set.
type Gateway struct {
	next   ports.PaymentGateway
	policy Policy
	log    zerolog.Logger

	retention time.Duration
	now       func() time.Time

	mu        sync.Mutex
	intents   map[string]simIntent
	lastSweep time.Time
	attached  map[string]string // method ref -> customer ref
}

// New creates a Gateway.
func New(next ports.PaymentGateway, policy Policy, log zerolog.Logger, opts ...Option) *Gateway {
	if next == nil {
		policy.All = true
	}
	g := &Gateway{
		next:      next,
		policy:    policy,
		log:       log.With().Str("component", "simulated_gateway").Logger(),
		retention: DefaultRetention,
		now:       time.Now,
		intents:   make(map[string]simIntent),
		attached:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ ports.PaymentGateway = (*Gateway)(nil)

func (g *Gateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	if !g.policy.All {
		return g.next.CreateCustomer(ctx, email, metadata)
	}
	return idgen.WithPrefix("cus_simulated"), nil
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (*domain.PaymentIntent, error) {
	if !g.policy.All && !g.policy.Handles(req.MethodRef) {
		return g.next.CreatePaymentIntent(ctx, req)
	}

	id := idgen.WithPrefix("pi_simulated")
	pi := domain.PaymentIntent{
		ID:           id,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       domain.IntentRequiresPaymentMethod,
		ClientSecret: id + "_secret_" + strings.ToLower(idgen.New()[16:]),
		CustomerRef:  req.CustomerRef,
		MethodRef:    req.MethodRef,
		Metadata:     copyMeta(req.Metadata),
	}
	if req.MethodRef != "" {
		pi.Status = domain.IntentRequiresConfirmation
	}

	g.store(pi)

	g.log.Debug().Str("intent_id", id).Int64("amount", req.Amount).Msg("simulated intent created")
	return &pi, nil
}

func (g *Gateway) ConfirmPaymentIntent(ctx context.Context, intentID, methodRef string) (*domain.PaymentIntent, error) {
	pi, ok := g.lookup(intentID)
	if !ok {
		if g.policy.All {
			return nil, missing("payment intent", intentID)
		}
		return g.next.ConfirmPaymentIntent(ctx, intentID, methodRef)
	}

	if methodRef == "" {
		methodRef = pi.MethodRef
	}
	switch {
	case pi.Status == domain.IntentSucceeded:
		return &pi, nil
	case !g.policy.Handles(methodRef):
		return nil, apperror.ErrGatewayRejected("Simulated intents accept only test payment methods",
			fmt.Errorf("confirm %s with %q", intentID, methodRef))
	case g.policy.declines(methodRef):
		pi.Status = domain.IntentRequiresPaymentMethod
		g.store(pi)
		return nil, apperror.ErrGatewayRejected("Your card was declined.",
			fmt.Errorf("confirm %s: card_declined", intentID))
	}

	pi.MethodRef = methodRef
	pi.Status = domain.IntentSucceeded
	pi.AmountReceived = pi.Amount
	g.store(pi)

	g.log.Debug().Str("intent_id", intentID).Msg("simulated intent succeeded")
	return &pi, nil
}

func (g *Gateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	pi, ok := g.lookup(intentID)
	if ok {
		return &pi, nil
	}
	if g.policy.All {
		return nil, missing("payment intent", intentID)
	}
	return g.next.RetrievePaymentIntent(ctx, intentID)
}

func (g *Gateway) CreatePayout(ctx context.Context, req ports.PayoutRequest) (*domain.Payout, error) {
	if !g.policy.All {
		return g.next.CreatePayout(ctx, req)
	}
	return &domain.Payout{ID: idgen.WithPrefix("po_simulated"), Amount: req.Amount, Status: "paid"}, nil
}

func (g *Gateway) RetrieveMethod(ctx context.Context, methodRef string) (*domain.MethodDetails, error) {
	if !g.policy.Handles(methodRef) {
		return g.next.RetrieveMethod(ctx, methodRef)
	}
	g.mu.Lock()
	owner := g.attached[methodRef]
	g.mu.Unlock()
	return describe(methodRef, owner), nil
}

func (g *Gateway) AttachMethod(ctx context.Context, methodRef, customerRef string) (*domain.MethodDetails, error) {
	if !g.policy.Handles(methodRef) {
		return g.next.AttachMethod(ctx, methodRef, customerRef)
	}
	g.mu.Lock()
	g.attached[methodRef] = customerRef
	g.mu.Unlock()
	return describe(methodRef, customerRef), nil
}

func (g *Gateway) DetachMethod(ctx context.Context, methodRef string) error {
	if !g.policy.Handles(methodRef) {
		return g.next.DetachMethod(ctx, methodRef)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.attached[methodRef]; !ok {
		return missing("payment method", methodRef)
	}
	delete(g.attached, methodRef)
	return nil
}

// ListMethods merges simulated attachments with the real processor's list.
func (g *Gateway) ListMethods(ctx context.Context, customerRef string) ([]domain.MethodDetails, error) {
	var out []domain.MethodDetails
	if !g.policy.All {
		remote, err := g.next.ListMethods(ctx, customerRef)
		if err != nil {
			return nil, err
		}
		out = append(out, remote...)
	}

	g.mu.Lock()
	var refs []string
	for ref, owner := range g.attached {
		if owner == customerRef {
			refs = append(refs, ref)
		}
	}
	g.mu.Unlock()

	sort.Strings(refs)
	for _, ref := range refs {
		out = append(out, *describe(ref, customerRef))
	}
	return out, nil
}

func (g *Gateway) lookup(intentID string) (domain.PaymentIntent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.intents[intentID]
	if !ok || g.now().Sub(e.touched) > g.retention {
		return domain.PaymentIntent{}, false
	}
	return e.pi, true
}

func (g *Gateway) store(pi domain.PaymentIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.intents[pi.ID] = simIntent{pi: pi, touched: now}
	g.sweepLocked(now)
}

// sweepLocked drops intents idle for longer than the retention, at most once
// per tenth of the retention. Caller holds g.mu.
func (g *Gateway) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.retention/10 {
		return
	}
	g.lastSweep = now
	for id, e := range g.intents {
		if now.Sub(e.touched) > g.retention {
			delete(g.intents, id)
		}
	}
}

// Len reports how many simulated intents are held.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

func missing(kind, id string) error {
	return apperror.ErrGatewayRejected(fmt.Sprintf("No such %s: '%s'", kind, id),
		fmt.Errorf("%s %s: %w", kind, id, domain.ErrGatewayResourceMissing))
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Package stripe adapts the Stripe API to ports.PaymentGateway.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"digital-wallet/config"
	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/apperror"

	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// Client calls Stripe with a per-call deadline and maps its errors onto
// GW_001 (retry later) and GW_002 (terminal refusal).
type Client struct {
	api     *client.API
	timeout time.Duration
	log     zerolog.Logger
}

// New builds a Client from gateway configuration.
func New(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	log = log.With().Str("component", "stripe").Logger()

	bc := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     leveledLogger{log: log},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripego.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, bc)

	return &Client{
		api:     client.New(cfg.StripeKey, &stripego.Backends{API: backend, Connect: backend, Uploads: backend}),
		timeout: cfg.Timeout,
		log:     log,
	}
}

var _ ports.PaymentGateway = (*Client)(nil)

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.CustomerParams{Email: stripego.String(email)}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", classify("create customer", err)
	}
	c.log.Debug().Str("customer_ref", cus.ID).Msg("customer created")
	return cus.ID, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (*domain.PaymentIntent, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentIntentParams{
		Amount:             stripego.Int64(req.Amount),
		Currency:           stripego.String(req.Currency.Lower()),
		Customer:           stripego.String(req.CustomerRef),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
	}
	if req.MethodRef != "" {
		params.PaymentMethod = stripego.String(req.MethodRef)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	c.log.Debug().Str("intent_id", pi.ID).Int64("amount", pi.Amount).Msg("payment intent created")
	return toIntent(pi), nil
}

func (c *Client) ConfirmPaymentIntent(ctx context.Context, intentID, methodRef string) (*domain.PaymentIntent, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentIntentConfirmParams{PaymentMethod: stripego.String(methodRef)}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, classify("confirm payment intent", err)
	}
	c.log.Debug().Str("intent_id", pi.ID).Str("status", string(pi.Status)).Msg("payment intent confirmed")
	return toIntent(pi), nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, classify("retrieve payment intent", err)
	}
	return toIntent(pi), nil
}

// CreatePayout sends funds with the instant method.
func (c *Client) CreatePayout(ctx context.Context, req ports.PayoutRequest) (*domain.Payout, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PayoutParams{
		Amount:   stripego.Int64(req.Amount),
		Currency: stripego.String(req.Currency.Lower()),
		Method:   stripego.String("instant"),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("customer_ref", req.CustomerRef)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	po, err := c.api.Payouts.New(params)
	if err != nil {
		return nil, classify("create payout", err)
	}
	c.log.Debug().Str("payout_id", po.ID).Int64("amount", po.Amount).Msg("payout created")
	return &domain.Payout{ID: po.ID, Amount: po.Amount, Status: string(po.Status)}, nil
}

func (c *Client) RetrieveMethod(ctx context.Context, methodRef string) (*domain.MethodDetails, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentMethodParams{}
	params.Context = ctx

	pm, err := c.api.PaymentMethods.Get(methodRef, params)
	if err != nil {
		return nil, classify("retrieve payment method", err)
	}
	return toMethod(pm), nil
}

func (c *Client) AttachMethod(ctx context.Context, methodRef, customerRef string) (*domain.MethodDetails, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentMethodAttachParams{Customer: stripego.String(customerRef)}
	params.Context = ctx

	pm, err := c.api.PaymentMethods.Attach(methodRef, params)
	if err != nil {
		return nil, classify("attach payment method", err)
	}
	c.log.Debug().Str("method_ref", pm.ID).Str("customer_ref", customerRef).Msg("payment method attached")
	return toMethod(pm), nil
}

func (c *Client) DetachMethod(ctx context.Context, methodRef string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := c.api.PaymentMethods.Detach(methodRef, params); err != nil {
		return classify("detach payment method", err)
	}
	c.log.Debug().Str("method_ref", methodRef).Msg("payment method detached")
	return nil
}

func (c *Client) ListMethods(ctx context.Context, customerRef string) ([]domain.MethodDetails, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentMethodListParams{
		Customer: stripego.String(customerRef),
		Type:     stripego.String("card"),
	}
	params.Context = ctx

	var out []domain.MethodDetails
	it := c.api.PaymentMethods.List(params)
	for it.Next() {
		out = append(out, *toMethod(it.PaymentMethod()))
	}
	if err := it.Err(); err != nil {
		return nil, classify("list payment methods", err)
	}
	return out, nil
}

func toIntent(pi *stripego.PaymentIntent) *domain.PaymentIntent {
	out := &domain.PaymentIntent{
		ID:             pi.ID,
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Currency:       domain.Currency(strings.ToUpper(string(pi.Currency))),
		Status:         domain.IntentStatus(pi.Status),
		ClientSecret:   pi.ClientSecret,
		Metadata:       pi.Metadata,
	}
	if pi.Customer != nil {
		out.CustomerRef = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		out.MethodRef = pi.PaymentMethod.ID
	}
	return out
}

func toMethod(pm *stripego.PaymentMethod) *domain.MethodDetails {
	out := &domain.MethodDetails{MethodRef: pm.ID, Kind: string(pm.Type)}
	if pm.Customer != nil {
		out.CustomerRef = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Card = &domain.CardSummary{
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: int(pm.Card.ExpMonth),
			ExpYear:  int(pm.Card.ExpYear),
		}
	}
	return out
}

// classify maps a Stripe failure onto the gateway error kinds.
func classify(op string, err error) error {
	var se *stripego.Error
	if !errors.As(err, &se) {
		// Transport failures and deadlines never reached a decision.
		return apperror.ErrGatewayUnavailable(fmt.Errorf("%s: %w", op, err))
	}

	switch {
	case se.Code == stripego.ErrorCodeResourceMissing:
		return apperror.ErrGatewayRejected(se.Msg, fmt.Errorf("%s: %w: %w", op, domain.ErrGatewayResourceMissing, err))
	case se.HTTPStatusCode >= http.StatusInternalServerError,
		se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode == http.StatusConflict,
		se.Type == stripego.ErrorTypeAPI,
		se.Type == stripego.ErrorType("idempotency_error"),
		se.Code == stripego.ErrorCode("lock_timeout"):
		return apperror.ErrGatewayUnavailable(fmt.Errorf("%s: %w", op, err))
	default:
		return apperror.ErrGatewayRejected(se.Msg, fmt.Errorf("%s: %w", op, err))
	}
}

// leveledLogger routes stripe-go's internal logging into zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }

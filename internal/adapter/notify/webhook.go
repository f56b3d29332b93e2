package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"
	"digital-wallet/pkg/signature"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRetryIntervals are the waits between webhook attempts.
var DefaultRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// HTTPClient is the subset of *http.Client the notifier needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier POSTs signed notifications to one endpoint, retrying
// non-2xx answers and transport errors on a fixed schedule.
type WebhookNotifier struct {
	url        string
	secret     string
	client     HTTPClient
	deliveries ports.DeliveryLogRepository // optional
	intervals  []time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// WebhookOption customizes a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithDeliveryLog records every attempt in repo.
func WithDeliveryLog(repo ports.DeliveryLogRepository) WebhookOption {
	return func(w *WebhookNotifier) { w.deliveries = repo }
}

// WithRetryIntervals replaces DefaultRetryIntervals.
func WithRetryIntervals(intervals []time.Duration) WebhookOption {
	return func(w *WebhookNotifier) { w.intervals = intervals }
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(url, secret string, client HTTPClient, log zerolog.Logger, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:       url,
		secret:    secret,
		client:    client,
		intervals: DefaultRetryIntervals,
		now:       time.Now,
		log:       log.With().Str("component", "webhook_notifier").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify blocks until the notification is delivered, every retry is spent,
// or ctx ends. Callers run it off the request path.
func (w *WebhookNotifier) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(newEnvelope(n))
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	rec := w.startRecord(ctx, n, body)

	var lastErr error
	for attempt := 0; attempt <= len(w.intervals); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				w.finishRecord(ctx, rec, attempt, nil, ctx.Err())
				return fmt.Errorf("notification to %s abandoned: %w", n.Recipient, ctx.Err())
			case <-time.After(w.intervals[attempt-1]):
			}
		}

		status, err := w.post(ctx, body)
		if err == nil && status >= 200 && status < 300 {
			w.finishRecord(ctx, rec, attempt+1, &status, nil)
			w.log.Debug().Str("recipient", n.Recipient).Int("attempt", attempt+1).Msg("notification delivered")
			return nil
		}
		if err == nil {
			err = fmt.Errorf("endpoint answered %d", status)
		}
		lastErr = err
		w.retryRecord(ctx, rec, attempt+1, status, err)
		w.log.Warn().Err(err).Str("recipient", n.Recipient).Int("attempt", attempt+1).Msg("notification delivery failed")
	}

	w.finishRecord(ctx, rec, len(w.intervals)+1, nil, lastErr)
	w.log.Error().Err(lastErr).Str("recipient", n.Recipient).Str("kind", string(n.Kind)).Msg("notification retries exhausted")
	return fmt.Errorf("delivering notification to %s: %w", n.Recipient, lastErr)
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	ts := w.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(signature.Header, signature.Sign(w.secret, ts, body))

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (w *WebhookNotifier) startRecord(ctx context.Context, n domain.Notification, body []byte) *domain.DeliveryLog {
	if w.deliveries == nil {
		return nil
	}
	now := w.now().UTC()
	rec := &domain.DeliveryLog{
		ID:        uuid.New(),
		Recipient: n.Recipient,
		Kind:      n.Kind,
		Endpoint:  w.url,
		Payload:   string(body),
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.deliveries.Create(ctx, rec); err != nil {
		w.log.Warn().Err(err).Msg("recording delivery failed")
		return nil
	}
	return rec
}

func (w *WebhookNotifier) retryRecord(ctx context.Context, rec *domain.DeliveryLog, attempt, status int, cause error) {
	if rec == nil {
		return
	}
	rec.Attempt = attempt
	if status != 0 {
		rec.HTTPStatus = &status
	}
	msg := cause.Error()
	rec.LastError = &msg
	if attempt <= len(w.intervals) {
		next := w.now().UTC().Add(w.intervals[attempt-1])
		rec.NextRetryAt = &next
	}
	rec.UpdatedAt = w.now().UTC()
	if err := w.deliveries.Update(ctx, rec); err != nil {
		w.log.Warn().Err(err).Msg("recording delivery attempt failed")
	}
}

func (w *WebhookNotifier) finishRecord(ctx context.Context, rec *domain.DeliveryLog, attempt int, status *int, cause error) {
	if rec == nil {
		return
	}
	rec.Attempt = attempt
	rec.NextRetryAt = nil
	rec.UpdatedAt = w.now().UTC()
	if cause == nil {
		rec.Status = domain.DeliveryStatusDelivered
		rec.HTTPStatus = status
		rec.LastError = nil
	} else {
		rec.Status = domain.DeliveryStatusFailed
		msg := cause.Error()
		rec.LastError = &msg
	}
	if err := w.deliveries.Update(context.WithoutCancel(ctx), rec); err != nil {
		w.log.Warn().Err(err).Msg("recording delivery outcome failed")
	}
}

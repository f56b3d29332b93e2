// Package notify delivers user notifications to a log, an HTTP webhook or a
// RabbitMQ exchange.
package notify

import (
	"context"

	"digital-wallet/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	ev := n.log.Info().
		Str("recipient", msg.Recipient).
		Str("kind", string(msg.Kind))
	for k, v := range msg.Fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("notification")
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"digital-wallet/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *amqp.Channel used for notifications.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitNotifier publishes notifications to a topic exchange with routing key
// "notification.<kind>".
type RabbitNotifier struct {
	pub      Publisher
	exchange string
	log      zerolog.Logger
}

// NewRabbitNotifier creates a RabbitNotifier over an open channel.
func NewRabbitNotifier(pub Publisher, exchange string, log zerolog.Logger) *RabbitNotifier {
	return &RabbitNotifier{pub: pub, exchange: exchange, log: log.With().Str("component", "rabbit_notifier").Logger()}
}

// DialRabbit connects, opens a channel and declares the exchange. The
// returned close func releases the channel and connection.
func DialRabbit(url, exchange string, log zerolog.Logger) (*RabbitNotifier, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": "digital-wallet"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewRabbitNotifier(ch, exchange, log), closeFn, nil
}

// RoutingKey returns the key a notification of kind is published under.
func RoutingKey(kind domain.NotificationKind) string {
	return "notification." + string(kind)
}

func (r *RabbitNotifier) Notify(ctx context.Context, n domain.Notification) error {
	env := newEnvelope(n)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	err = r.pub.PublishWithContext(ctx, r.exchange, RoutingKey(n.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID.String(),
		Timestamp:    env.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing %s notification: %w", n.Kind, err)
	}
	r.log.Debug().Str("recipient", n.Recipient).Str("routing_key", RoutingKey(n.Kind)).Msg("notification published")
	return nil
}

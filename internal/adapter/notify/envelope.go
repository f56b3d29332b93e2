package notify

import (
	"time"

	"digital-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// envelope is the wire form shared by the webhook and RabbitMQ notifiers.
type envelope struct {
	EventID   uuid.UUID         `json:"event_id"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

func newEnvelope(n domain.Notification) envelope {
	created := n.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return envelope{
		EventID:   uuid.New(),
		Kind:      string(n.Kind),
		Recipient: n.Recipient,
		Fields:    n.Fields,
		CreatedAt: created,
	}
}

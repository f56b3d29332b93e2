package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the result of a money movement under its client key.
type IdempotencyLog struct {
	Key           string    `json:"key"` // Format: "user_id:operation:client_key"
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client-supplied key to a user and operation.
func BuildIdempotencyKey(userID string, operation TransactionType, clientKey string) string {
	return userID + ":" + string(operation) + ":" + clientKey
}

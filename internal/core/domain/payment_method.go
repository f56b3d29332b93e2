package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardSummary is the non-sensitive card description returned by the processor.
type CardSummary struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// PaymentMethod is a processor-held funding source registered to a user.
type PaymentMethod struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	MethodRef string       `json:"method_ref"`
	Kind      string       `json:"kind"`
	Card      *CardSummary `json:"card,omitempty"`
	IsDefault bool         `json:"is_default"`
	CreatedAt time.Time    `json:"created_at"`
}

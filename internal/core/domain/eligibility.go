package domain

import "time"

// EligibilityStatus is the identity-verification outcome for a user.
type EligibilityStatus string

const (
	EligibilityPending  EligibilityStatus = "pending"
	EligibilityApproved EligibilityStatus = "approved"
	EligibilityRejected EligibilityStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s EligibilityStatus) Valid() bool {
	return s == EligibilityPending || s == EligibilityApproved || s == EligibilityRejected
}

// EligibilityRecord is the verification state that gates wallet creation.
type EligibilityRecord struct {
	UserID          string            `json:"user_id"`
	Status          EligibilityStatus `json:"status"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsApproved returns true for an approved record.
func (r *EligibilityRecord) IsApproved() bool {
	return r != nil && r.Status == EligibilityApproved
}

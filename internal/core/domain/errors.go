package domain

import "errors"

// Sentinel errors returned by storage and gateway adapters.
var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrGatewayResourceMissing = errors.New("processor resource missing")
)

package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names a user-facing event.
type NotificationKind string

const (
	NotifyWalletCreated     NotificationKind = "wallet_created"
	NotifyDeposit           NotificationKind = "deposit"
	NotifyWithdrawal        NotificationKind = "withdrawal"
	NotifyTransferSent      NotificationKind = "transfer_sent"
	NotifyTransferReceived  NotificationKind = "transfer_received"
	NotifyQRPaymentSent     NotificationKind = "qr_payment_sent"
	NotifyQRPaymentReceived NotificationKind = "qr_payment_received"
	NotifyMethodAdded       NotificationKind = "payment_method_added"
)

// Notification is one message for one recipient.
type Notification struct {
	Recipient string            `json:"recipient"`
	Kind      NotificationKind  `json:"kind"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

// DeliveryStatus represents the outcome of a notification delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// DeliveryLog records webhook delivery attempts for a notification.
type DeliveryLog struct {
	ID          uuid.UUID        `json:"id"`
	Recipient   string           `json:"recipient"`
	Kind        NotificationKind `json:"kind"`
	Endpoint    string           `json:"endpoint"`
	Payload     string           `json:"payload"`
	HTTPStatus  *int             `json:"http_status"`
	Attempt     int              `json:"attempt"`
	Status      DeliveryStatus   `json:"status"`
	NextRetryAt *time.Time       `json:"next_retry_at"`
	LastError   *string          `json:"last_error"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

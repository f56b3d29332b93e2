package domain

// IntentStatus mirrors the processor's payment intent states.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentCanceled              IntentStatus = "canceled"
	IntentSucceeded             IntentStatus = "succeeded"
)

// PaymentIntent is the processor's record of an attempt to collect funds.
type PaymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       Currency          `json:"currency"`
	Status         IntentStatus      `json:"status"`
	ClientSecret   string            `json:"client_secret,omitempty"`
	CustomerRef    string            `json:"customer_ref,omitempty"`
	MethodRef      string            `json:"method_ref,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the intent settled.
func (p *PaymentIntent) Succeeded() bool {
	return p.Status == IntentSucceeded
}

// SettledAmount is the amount actually collected, falling back to the requested amount.
func (p *PaymentIntent) SettledAmount() int64 {
	if p.AmountReceived > 0 {
		return p.AmountReceived
	}
	return p.Amount
}

// Payout is the processor's record of funds sent to a user.
type Payout struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// MethodDetails describes a processor payment method.
type MethodDetails struct {
	MethodRef   string       `json:"method_ref"`
	Kind        string       `json:"kind"`
	CustomerRef string       `json:"customer_ref,omitempty"`
	Card        *CardSummary `json:"card,omitempty"`
}

package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestTrimStruct(t *testing.T) {
	reason := "  documents expired  "
	req := EligibilityUpdateRequest{Status: " rejected ", Reason: &reason}
	TrimStruct(&req)

	assert.Equal(t, "rejected", req.Status)
	assert.Equal(t, "documents expired", *req.Reason)

	var nilReason EligibilityUpdateRequest
	TrimStruct(&nilReason)
	assert.Nil(t, nilReason.Reason)

	// Non-pointers are ignored.
	TrimStruct(req)
}

func TestBindingRules(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		valid bool
	}{
		{"deposit ok", &DepositRequest{Amount: 100, PaymentMethodID: "pm_card_visa"}, true},
		{"deposit zero amount", &DepositRequest{Amount: 0, PaymentMethodID: "pm_card_visa"}, false},
		{"deposit negative amount", &DepositRequest{Amount: -5, PaymentMethodID: "pm_card_visa"}, false},
		{"deposit unsafe method", &DepositRequest{Amount: 1, PaymentMethodID: "pm card'; drop"}, false},
		{"wallet defaults", &CreateWalletRequest{}, true},
		{"wallet lowercase currency", &CreateWalletRequest{Currency: "eur"}, true},
		{"wallet unknown currency", &CreateWalletRequest{Currency: "XYZ"}, false},
		{"wallet negative balance", &CreateWalletRequest{InitialBalance: -1}, false},
		{"wallet bad email", &CreateWalletRequest{Email: "not-an-email"}, false},
		{"transfer ok", &TransferRequest{RecipientUserID: "bob", Amount: 1}, true},
		{"qr by id", &InitiateQRRequest{PaymentID: "01HZX", PaymentMethodID: "pm_card_visa"}, true},
		{"qr by payload", &InitiateQRRequest{Payload: "eyJ.x.y", PaymentMethodID: "pm_card_visa"}, true},
		{"qr neither", &InitiateQRRequest{PaymentMethodID: "pm_card_visa"}, false},
		{"eligibility ok", &EligibilityUpdateRequest{Status: "approved"}, true},
		{"eligibility unknown", &EligibilityUpdateRequest{Status: "maybe"}, false},
		{"list filters", &ListTransactionsQuery{Page: 2, PageSize: 50, Status: "completed", Type: "deposit"}, true},
		{"list oversize page", &ListTransactionsQuery{PageSize: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

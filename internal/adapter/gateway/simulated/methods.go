package simulated

import (
	"strings"

	"digital-wallet/internal/core/domain"
)

type testCard struct {
	brand string
	last4 string
}

var testCards = map[string]testCard{
	"visa":                            {"visa", "4242"},
	"visa_debit":                      {"visa", "5556"},
	"mastercard":                      {"mastercard", "4444"},
	"mastercard_prepaid":              {"mastercard", "5100"},
	"amex":                            {"amex", "8431"},
	"discover":                        {"discover", "1117"},
	"diners":                          {"diners", "0004"},
	"jcb":                             {"jcb", "0000"},
	"unionpay":                        {"unionpay", "0005"},
	"threeDSecure2Required":           {"visa", "3155"},
	"chargeDeclined":                  {"visa", "0002"},
	"chargeDeclinedInsufficientFunds": {"visa", "9995"},
}

var nonCardKinds = map[string]string{
	"pm_usBankAccount": "us_bank_account",
	"pm_sepaDebit":     "sepa_debit",
	"pm_bacsDebit":     "bacs_debit",
	"pm_alipay":        "alipay",
	"pm_wechat":        "wechat_pay",
}

// describe returns processor-shaped details for a test method ref.
func describe(methodRef, customerRef string) *domain.MethodDetails {
	if kind, ok := nonCardKinds[methodRef]; ok {
		return &domain.MethodDetails{MethodRef: methodRef, Kind: kind, CustomerRef: customerRef}
	}

	card, ok := testCards[strings.TrimPrefix(methodRef, "pm_card_")]
	if !ok {
		card = testCard{brand: "visa", last4: "4242"}
	}
	return &domain.MethodDetails{
		MethodRef:   methodRef,
		Kind:        "card",
		CustomerRef: customerRef,
		Card:        &domain.CardSummary{Brand: card.brand, Last4: card.last4, ExpMonth: 12, ExpYear: 2034},
	}
}

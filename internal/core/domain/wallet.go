package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Currency is an ISO 4217 code from the supported set.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyJPY Currency = "JPY"
)

var supportedCurrencies = map[Currency]bool{
	CurrencyUSD: true,
	CurrencyEUR: true,
	CurrencyGBP: true,
	CurrencyCAD: true,
	CurrencyAUD: true,
	CurrencyJPY: true,
}

// ParseCurrency normalizes s and checks it against the supported set.
func ParseCurrency(s string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	return c, supportedCurrencies[c]
}

// Lower returns the lowercase code the payment processor expects.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}

// Wallet is the single balance account of a user.
// Balance is in minor units and never negative in a committed state.
type Wallet struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Balance     int64     `json:"balance"`
	Currency    Currency  `json:"currency"`
	CustomerRef string    `json:"customer_ref"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanCover reports whether the wallet holds at least amount, less any held funds.
func (w *Wallet) CanCover(amount, held int64) bool {
	return w.Balance-held >= amount
}

// Package money converts between integer minor units and decimal strings.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ToDecimal converts minor units into a decimal major-unit amount.
func ToDecimal(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units as "12.34 USD".
func Format(minor int64, currency string) string {
	cur := strings.ToUpper(currency)
	return fmt.Sprintf("%s %s", ToDecimal(minor, cur).StringFixed(Exponent(cur)), cur)
}

// FromString parses a major-unit decimal string into minor units.
// Amounts with more precision than the currency supports are rejected.
func FromString(s string, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	exp := Exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, exp)
	}
	if scaled.GreaterThan(decimal.NewFromInt(maxMinor)) || scaled.LessThan(decimal.NewFromInt(-maxMinor)) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return scaled.IntPart(), nil
}

const maxMinor = int64(1) << 53

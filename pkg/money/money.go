// Package money formats provider minor-unit amounts for display.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Exponent returns the number of minor-unit digits for an ISO currency.
func Exponent(currency string) int32 {
	if _, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// FromMinor converts an amount in minor units to a decimal in major units.
func FromMinor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currency))
}

// Format renders "49.00 USD".
func Format(amount int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	value := FromMinor(amount, code).StringFixed(Exponent(code))
	if code == "" {
		return value
	}
	return value + " " + code
}

// ToMinor parses a major-unit amount such as "49.00" into minor units.
// Amounts with more precision than the currency allows are rejected.
func ToMinor(amount, currency string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", amount)
	}
	minor := value.Shift(Exponent(currency))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has too many decimal places for %s", amount, strings.ToUpper(currency))
	}
	return minor.IntPart(), nil
}

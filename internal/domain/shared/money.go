package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// NormalizeCurrency validates an ISO 4217 code and returns it upper-cased.
func NormalizeCurrency(entity EntityKind, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", Validation(entity, fmt.Sprintf("unknown currency %q", code)).
			WithDetail("field", "currency")
	}
	return unit.String(), nil
}

// RequirePositive fails when amount is zero or negative.
func RequirePositive(entity EntityKind, field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Validation(entity, fmt.Sprintf("%s must be greater than zero", field)).
			WithDetail("field", field).
			WithDetail("value", amount.String())
	}
	return nil
}

// RequireNonNegative fails when amount is negative.
func RequireNonNegative(entity EntityKind, field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return Validation(entity, fmt.Sprintf("%s cannot be negative", field)).
			WithDetail("field", field).
			WithDetail("value", amount.String())
	}
	return nil
}

// FormatAmount renders an amount with two decimals and its currency.
func FormatAmount(amount decimal.Decimal, currencyCode string) string {
	return amount.StringFixed(2) + " " + currencyCode
}

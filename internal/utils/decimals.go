package utils

import "github.com/shopspring/decimal"

// MustDecimal parses s and panics on error. Intended for tests and constants.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// FormatDecimal renders d for storage in a TEXT column.
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

package models

import "github.com/shopspring/decimal"

// BalanceScale is the fixed number of fractional digits used when comparing
// currency amounts. It absorbs representation noise from multiplication while
// stored amounts keep their natural precision.
const BalanceScale = 18

// Scaled rounds d to BalanceScale fractional digits, half up. All sufficiency
// and zero checks go through this before comparing.
func Scaled(d decimal.Decimal) decimal.Decimal {
	return d.Round(BalanceScale)
}

// IsZero reports whether d is zero at BalanceScale precision
func IsZero(d decimal.Decimal) bool {
	return Scaled(d).IsZero()
}

// NegativeOrZero reports whether d <= 0
func NegativeOrZero(d decimal.Decimal) bool {
	return d.Sign() <= 0
}

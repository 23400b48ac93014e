package models

import "github.com/shopspring/decimal"

// AmountScale is the number of decimal places stored for every monetary amount.
const AmountScale int32 = 4

// PercentageScale is the number of decimal places stored for allocation percentages.
const PercentageScale int32 = 8

// RoundAmount rounds to AmountScale, half away from zero.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// MinAmount returns the smaller of a and b.
func MinAmount(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Package money holds the decimal conventions shared by cart, checkout and orders.
package money

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits prices are rounded to.
const Scale = 2

func init() {
	// Prices travel as JSON numbers to match the storefront payloads.
	decimal.MarshalJSONWithoutQuotes = true
}

// Zero is the additive identity.
var Zero = decimal.Zero

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Round normalizes an amount to Scale digits, rounding half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// IsNegative reports whether amount is below zero.
func IsNegative(amount decimal.Decimal) bool {
	return amount.Sign() < 0
}

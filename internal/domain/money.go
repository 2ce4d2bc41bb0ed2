package domain

import "github.com/shopspring/decimal"

// Money values are decimal.Decimal throughout the engine. Amounts crossing a
// computation boundary (intent estimates, summaries, audit records) are
// rounded to the minor currency unit with Cents. Equality comparisons always
// go through decimal, never through binary floats.

// USD converts a raw float (as received from broker payloads or flags) into
// a cent-rounded decimal amount.
func USD(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// Cents rounds an amount to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

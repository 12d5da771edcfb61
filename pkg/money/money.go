// Package money provides the fixed-point decimal type used on every
// accounting path in the engine (positions, orders, cycle performance,
// scenario P&L). Binary floats are reserved for scores in [0,1] and
// statistics (Sharpe ratio, volatility) per the data model's "no binary
// floats in accounting paths" rule.
package money

import "github.com/shopspring/decimal"

// Decimal is a fixed-point monetary value.
type Decimal = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// FromFloat builds a Decimal from a float64. Used only at the boundary
// where external feeds (market data, broker quotes) hand us float64
// prices; once inside accounting code, values stay Decimal.
func FromFloat(f float64) Decimal {
	return decimal.NewFromFloat(f)
}

// FromInt builds a Decimal from an int64.
func FromInt(i int64) Decimal {
	return decimal.NewFromInt(i)
}

// Round rounds d to the given number of decimal places (banker's rounding
// is not required here; shopspring/decimal rounds half away from zero,
// matching the teacher's own round3/round4 helpers in pkg/formulas).
func Round(d Decimal, places int32) Decimal {
	return d.Round(places)
}

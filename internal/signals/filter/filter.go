// Package filter implements the signal quality gate (§4.3): a set of
// required rejection rules plus an optional market-data-backed tier that
// only runs when a MarketSummary is supplied.
package filter

import (
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	minPrice            = 5.00
	minTransactionValue = 10_000.0
	congressionalMaxAge = 30 * 24 * time.Hour
	maxSymbolLength     = 10

	minAvgDailyVolumeUSD = 5_000_000.0
	maxSpreadToATR       = 0.08
	earningsWindowDays   = 3
)

// Reject evaluates a signal against the required quality rules, and then,
// if market is non-nil, the optional liquidity/spread/earnings rules.
// Returns the first failing reason and true, or ("", false) if the signal
// passes every rule.
func Reject(s domain.Signal, market *domain.MarketSummary) (string, bool) {
	if s.Price.LessThan(decimal.NewFromFloat(minPrice)) {
		return "price below penny-stock floor", true
	}
	if s.TransactionValue.LessThan(decimal.NewFromFloat(minTransactionValue)) {
		return "transaction value below minimum", true
	}
	if s.Source == domain.SourceCongressional && time.Since(s.FilingDate) > congressionalMaxAge {
		return "congressional filing too stale", true
	}
	if s.Source == domain.SourceInsiderForm4 && (s.Direction != domain.DirectionLong || s.TransactionValue.IsZero()) {
		return "form4 transaction not a qualifying purchase", true
	}
	if s.Symbol == "" || len(s.Symbol) > maxSymbolLength {
		return "symbol missing or too long", true
	}
	if s.FilerName == "" {
		return "filer name missing", true
	}

	if market == nil {
		return "", false
	}

	if market.AvgDailyVolumeUSD != nil && market.AvgDailyVolumeUSD.LessThan(decimal.NewFromFloat(minAvgDailyVolumeUSD)) {
		return "average daily volume below minimum", true
	}
	if market.BidAskSpread != nil && market.ATR != nil && *market.ATR > 0 {
		ratio, _ := market.BidAskSpread.Div(decimal.NewFromFloat(*market.ATR)).Float64()
		if ratio > maxSpreadToATR {
			return "spread to ATR ratio too wide", true
		}
	}
	if market.DaysToEarnings != nil {
		d := *market.DaysToEarnings
		if d >= -earningsWindowDays && d <= earningsWindowDays {
			return "within earnings window", true
		}
	}

	return "", false
}

package fetchers

import (
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
)

// transformGeneric pulls the common Signal fields out of a raw record's
// untyped map, defensively, so every stub fetcher shares one normalization
// path instead of four divergent ones.
func transformGeneric(raw domain.RawSignalRecord, source domain.SignalSource) (domain.SignalCandidate, error) {
	symbol, _ := raw.Raw["symbol"].(string)
	if symbol == "" {
		return domain.SignalCandidate{}, fmt.Errorf("raw record missing symbol")
	}

	direction := domain.DirectionLong
	if d, ok := raw.Raw["direction"].(string); ok && d == string(domain.DirectionShort) {
		direction = domain.DirectionShort
	}

	filerName, _ := raw.Raw["filer_name"].(string)
	filerID, _ := raw.Raw["filer_id"].(string)

	transactionDate, _ := raw.Raw["transaction_date"].(time.Time)
	filingDate, _ := raw.Raw["filing_date"].(time.Time)

	var txValue money.Decimal
	if v, ok := raw.Raw["transaction_value"].(float64); ok {
		txValue = money.FromFloat(v)
	}

	var shares *float64
	if v, ok := raw.Raw["shares"].(float64); ok {
		shares = &v
	}
	var price *money.Decimal
	if v, ok := raw.Raw["price"].(float64); ok {
		p := money.FromFloat(v)
		price = &p
	}

	return domain.SignalCandidate{
		Source:           source,
		Symbol:           symbol,
		Direction:        direction,
		FilerName:        filerName,
		FilerID:          filerID,
		TransactionDate:  transactionDate,
		FilingDate:       filingDate,
		TransactionValue: txValue,
		Shares:           shares,
		Price:            price,
	}, nil
}

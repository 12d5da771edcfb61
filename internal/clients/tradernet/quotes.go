package tradernet

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/pkg/money"
)

var _ marketdata.QuoteSource = (*QuoteSource)(nil)

// QuoteSource adapts Client's portfolio snapshot into the marketdata.
// QuoteSource capability: the live tier of the broker's quote precedence
// chain (§4.2) for symbols currently held at the broker. The Tradernet
// microservice exposes no standalone price-quote endpoint, only a
// portfolio snapshot, so a lookup for any symbol not currently held
// fails and marketdata.CachedQuoteSource falls through to its cache and
// finally the simulated source.
type QuoteSource struct {
	client *Client
}

// NewQuoteSource wraps client as a live quote source.
func NewQuoteSource(client *Client) *QuoteSource {
	return &QuoteSource{client: client}
}

// GetQuote derives a mid/bid/ask from the held position's current_price,
// applying the same fixed spread convention as
// marketdata.SimulatedQuoteSource.
func (q *QuoteSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	positions, err := q.client.GetPortfolio()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to fetch portfolio for live quote: %w", err)
	}

	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		mid := money.FromFloat(p.CurrentPrice)
		halfSpread := mid.Mul(money.FromFloat(0.0005))
		return domain.Quote{
			Symbol:    symbol,
			Mid:       mid,
			Bid:       mid.Sub(halfSpread),
			Ask:       mid.Add(halfSpread),
			Timestamp: time.Now().UTC(),
		}, nil
	}

	return domain.Quote{}, fmt.Errorf("symbol %s not currently held at broker, no live quote available", symbol)
}

// Package marketdata implements the market-data provider contract (§4.1):
// current price, ATR, average daily volume, bid/ask spread, and days to
// next earnings for a symbol, bundled into a Summary. Every callback may
// return nil; callers must be null-safe.
package marketdata

import (
	"context"
	"math"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/markcheno/go-talib"
)

// PriceBar is one day of OHLCV history used for ATR computation.
type PriceBar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// HistorySource supplies the raw price/quote data that SimulatedProvider
// and CachedProvider build market summaries from. A live deployment
// implements this against a real feed; it is intentionally the only
// interface this package needs from the outside world.
type HistorySource interface {
	Bars(ctx context.Context, symbol string, lookback int) ([]PriceBar, error)
	Spread(ctx context.Context, symbol string) (*money.Decimal, error)
	AvgDailyVolumeUSD(ctx context.Context, symbol string, days int) (*money.Decimal, error)
	DaysToNextEarnings(ctx context.Context, symbol string) (*int, error)
}

// Provider wraps a HistorySource and implements domain.MarketDataProvider,
// computing ATR via go-talib the way the teacher's pkg/formulas wraps
// go-talib for RSI/EMA/SMA.
type Provider struct {
	source HistorySource
}

// New creates a market-data provider over the given history source.
func New(source HistorySource) *Provider {
	return &Provider{source: source}
}

var _ domain.MarketDataProvider = (*Provider)(nil)

// CurrentPrice returns the most recent close, or nil if no bars are available.
func (p *Provider) CurrentPrice(ctx context.Context, symbol string) (*money.Decimal, error) {
	bars, err := p.source.Bars(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	price := money.FromFloat(bars[len(bars)-1].Close)
	return &price, nil
}

// AvgDailyVolumeUSD delegates to the history source.
func (p *Provider) AvgDailyVolumeUSD(ctx context.Context, symbol string, days int) (*money.Decimal, error) {
	return p.source.AvgDailyVolumeUSD(ctx, symbol, days)
}

// ATR computes the Average True Range over the given period: the mean of
// the last `period` true-range values, true range being
// max(high-low, |high-prevClose|, |low-prevClose|).
func (p *Provider) ATR(ctx context.Context, symbol string, period int) (*float64, error) {
	bars, err := p.source.Bars(ctx, symbol, period+1)
	if err != nil {
		return nil, err
	}
	if len(bars) < period+1 {
		return nil, nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	atrSeries := talib.Atr(highs, lows, closes, period)
	if len(atrSeries) == 0 {
		return nil, nil
	}
	v := atrSeries[len(atrSeries)-1]
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// BidAskSpread delegates to the history source.
func (p *Provider) BidAskSpread(ctx context.Context, symbol string) (*money.Decimal, error) {
	return p.source.Spread(ctx, symbol)
}

// DaysToNextEarnings delegates to the history source.
func (p *Provider) DaysToNextEarnings(ctx context.Context, symbol string) (*int, error) {
	return p.source.DaysToNextEarnings(ctx, symbol)
}

// Summary bundles all five callbacks plus a timestamp, tolerating missing
// values in each field rather than failing the whole request.
func (p *Provider) Summary(ctx context.Context, symbol string) (domain.MarketSummary, error) {
	price, _ := p.CurrentPrice(ctx, symbol)
	volume, _ := p.AvgDailyVolumeUSD(ctx, symbol, 30)
	atr, _ := p.ATR(ctx, symbol, 14)
	spread, _ := p.BidAskSpread(ctx, symbol)
	earnings, _ := p.DaysToNextEarnings(ctx, symbol)

	return domain.MarketSummary{
		Symbol:            symbol,
		CurrentPrice:      price,
		AvgDailyVolumeUSD: volume,
		ATR:               atr,
		BidAskSpread:      spread,
		DaysToEarnings:    earnings,
		Timestamp:         time.Now().UTC(),
	}, nil
}

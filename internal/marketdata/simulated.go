package marketdata

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/aristath/signalcycle/pkg/money"
)

// SimulatedProvider is a deterministic, seeded HistorySource: the same
// seed and symbol always produce the same bar sequence. It exists so
// tests and the paper broker can run without any external feed, per
// §4.1's adapter pair.
type SimulatedProvider struct {
	seed int64
}

// NewSimulatedProvider creates a simulated history source seeded for
// reproducibility. Two providers with the same seed produce identical
// bars for the same symbol, so golden-value tests stay stable.
func NewSimulatedProvider(seed int64) *SimulatedProvider {
	return &SimulatedProvider{seed: seed}
}

var _ HistorySource = (*SimulatedProvider)(nil)

// rngFor derives a per-symbol RNG from the provider seed and symbol, so
// distinct symbols get distinct but reproducible price paths.
func (s *SimulatedProvider) rngFor(symbol string) *rand.Rand {
	h := int64(2166136261)
	for _, c := range symbol {
		h = (h ^ int64(c)) * 16777619
	}
	return rand.New(rand.NewSource(s.seed ^ h))
}

// Bars generates `lookback` days of a random-walk OHLC series ending
// today, with close-to-close returns drawn from N(0, 0.015) and
// high/low widened around open/close by a small intrabar range.
func (s *SimulatedProvider) Bars(ctx context.Context, symbol string, lookback int) ([]PriceBar, error) {
	if lookback <= 0 {
		return nil, nil
	}
	rng := s.rngFor(symbol)

	bars := make([]PriceBar, lookback)
	price := 50.0 + rng.Float64()*150.0
	now := time.Now().UTC()

	for i := 0; i < lookback; i++ {
		open := price
		ret := rng.NormFloat64() * 0.015
		close := open * (1 + ret)
		if close < 0.01 {
			close = 0.01
		}
		spread := math.Abs(open-close) + open*0.003
		high := math.Max(open, close) + spread*rng.Float64()
		low := math.Max(0.01, math.Min(open, close)-spread*rng.Float64())

		bars[i] = PriceBar{
			Date:  now.AddDate(0, 0, -(lookback - 1 - i)),
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		}
		price = close
	}
	return bars, nil
}

// Spread returns a fixed 10bps simulated bid/ask spread.
func (s *SimulatedProvider) Spread(ctx context.Context, symbol string) (*money.Decimal, error) {
	bars, err := s.Bars(ctx, symbol, 1)
	if err != nil || len(bars) == 0 {
		return nil, err
	}
	spread := money.FromFloat(bars[0].Close * 0.001)
	return &spread, nil
}

// AvgDailyVolumeUSD returns a deterministic simulated dollar volume,
// scaled by the symbol's simulated price so low-priced names also get
// low simulated liquidity.
func (s *SimulatedProvider) AvgDailyVolumeUSD(ctx context.Context, symbol string, days int) (*money.Decimal, error) {
	rng := s.rngFor(symbol)
	bars, err := s.Bars(ctx, symbol, 1)
	if err != nil || len(bars) == 0 {
		return nil, err
	}
	shares := 500_000.0 + rng.Float64()*4_500_000.0
	volume := money.FromFloat(bars[0].Close * shares)
	return &volume, nil
}

// DaysToNextEarnings returns a simulated day count in [1, 90], deterministic per symbol.
func (s *SimulatedProvider) DaysToNextEarnings(ctx context.Context, symbol string) (*int, error) {
	rng := s.rngFor(symbol)
	days := 1 + rng.Intn(90)
	return &days, nil
}

// CachedProvider wraps any HistorySource, falling back to a simulated
// source whenever the wrapped call fails or exceeds the configured
// timeout, so a flaky or rate-limited live feed degrades permissively
// rather than stalling the pipeline (§4.1).
type CachedProvider struct {
	live     HistorySource
	fallback HistorySource
	timeout  time.Duration
}

// NewCachedProvider wraps live with a timeout and falls back to fallback
// (typically a SimulatedProvider) on error or timeout.
func NewCachedProvider(live HistorySource, fallback HistorySource, timeout time.Duration) *CachedProvider {
	return &CachedProvider{live: live, fallback: fallback, timeout: timeout}
}

var _ HistorySource = (*CachedProvider)(nil)

func (c *CachedProvider) Bars(ctx context.Context, symbol string, lookback int) ([]PriceBar, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	bars, err := c.live.Bars(callCtx, symbol, lookback)
	if err != nil || len(bars) == 0 {
		return c.fallback.Bars(ctx, symbol, lookback)
	}
	return bars, nil
}

func (c *CachedProvider) Spread(ctx context.Context, symbol string) (*money.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	v, err := c.live.Spread(callCtx, symbol)
	if err != nil || v == nil {
		return c.fallback.Spread(ctx, symbol)
	}
	return v, nil
}

func (c *CachedProvider) AvgDailyVolumeUSD(ctx context.Context, symbol string, days int) (*money.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	v, err := c.live.AvgDailyVolumeUSD(callCtx, symbol, days)
	if err != nil || v == nil {
		return c.fallback.AvgDailyVolumeUSD(ctx, symbol, days)
	}
	return v, nil
}

func (c *CachedProvider) DaysToNextEarnings(ctx context.Context, symbol string) (*int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	v, err := c.live.DaysToNextEarnings(callCtx, symbol)
	if err != nil || v == nil {
		return c.fallback.DaysToNextEarnings(ctx, symbol)
	}
	return v, nil
}

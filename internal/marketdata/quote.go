package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
)

// QuoteSource is the narrow capability the paper broker needs: a bid/ask
// quote for a symbol. Implementations are composed in the precedence order
// described in §4.2: live adapter → cached last → deterministic simulated.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

// SimulatedQuoteSource produces deterministic quotes within a fixed RNG
// seed: mid = 100*U(0.95,1.05), spread = 0.1%*mid. It is the last resort
// in the quote precedence chain and the only source used in tests.
type SimulatedQuoteSource struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewSimulatedQuoteSource creates a simulated quote source seeded for
// reproducibility; production wiring passes time.Now().UnixNano().
func NewSimulatedQuoteSource(seed int64) *SimulatedQuoteSource {
	return &SimulatedQuoteSource{rng: rand.New(rand.NewSource(seed))}
}

// GetQuote returns a simulated mid/bid/ask for symbol.
func (s *SimulatedQuoteSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := 0.95 + s.rng.Float64()*0.10 // U(0.95, 1.05)
	mid := 100.0 * u
	spread := mid * 0.001

	return domain.Quote{
		Symbol:    symbol,
		Mid:       money.FromFloat(mid),
		Bid:       money.FromFloat(mid - spread/2),
		Ask:       money.FromFloat(mid + spread/2),
		Timestamp: time.Now().UTC(),
	}, nil
}

// CachedQuoteSource wraps a live QuoteSource, falling back to the last
// successfully observed quote (and finally to a fallback source) whenever
// the live call fails or times out, implementing the quote precedence of
// §4.2 without coupling the broker to any particular live adapter.
type CachedQuoteSource struct {
	live     QuoteSource
	fallback QuoteSource
	timeout  time.Duration

	mu   sync.Mutex
	last map[string]domain.Quote
}

// NewCachedQuoteSource wraps live with a cache and a fallback source used
// when live is nil or unreachable.
func NewCachedQuoteSource(live QuoteSource, fallback QuoteSource, timeout time.Duration) *CachedQuoteSource {
	return &CachedQuoteSource{
		live:     live,
		fallback: fallback,
		timeout:  timeout,
		last:     make(map[string]domain.Quote),
	}
}

// GetQuote tries the live source first (with a hard timeout per §5),
// then the last cached quote for this symbol, then the fallback source.
func (c *CachedQuoteSource) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if c.live != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		q, err := c.live.GetQuote(callCtx, symbol)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.last[symbol] = q
			c.mu.Unlock()
			return q, nil
		}
	}

	c.mu.Lock()
	cached, ok := c.last[symbol]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	return c.fallback.GetQuote(ctx, symbol)
}

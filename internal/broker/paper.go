// Package broker implements the deterministic paper-trading broker (C2):
// order fills with slippage and commission, cash and position mutation,
// weighted-average cost basis. It is the only component touching the
// simulated ledger of cash/positions; everything above it talks only to
// the domain.Broker interface.
package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultCommission is charged per filled order unless overridden.
var DefaultCommission = money.FromFloat(1.00)

// DefaultSlippageBps is the default slippage applied to market fills.
const DefaultSlippageBps = 5

// PaperBroker is a single scenario's simulated broker: one cash balance,
// one position book, one order log. Scenarios never share a PaperBroker.
type PaperBroker struct {
	mu sync.Mutex

	log zerolog.Logger
	rng *rand.Rand

	quotes      marketdata.QuoteSource
	commission  money.Decimal
	slippageBps float64

	connected bool
	cash      money.Decimal
	positions map[string]*domain.BrokerPosition
	orders    map[string]*domain.Order
}

// NewPaperBroker creates a paper broker with the given starting cash and
// deterministic RNG seed. Production wiring passes time.Now().UnixNano();
// tests pass a fixed seed for reproducible fills.
func NewPaperBroker(seed int64, startingCash money.Decimal, quotes marketdata.QuoteSource, log zerolog.Logger) *PaperBroker {
	return &PaperBroker{
		log:         log.With().Str("component", "paper_broker").Logger(),
		rng:         rand.New(rand.NewSource(seed)),
		quotes:      quotes,
		commission:  DefaultCommission,
		slippageBps: DefaultSlippageBps,
		cash:        startingCash,
		positions:   make(map[string]*domain.BrokerPosition),
		orders:      make(map[string]*domain.Order),
	}
}

var _ domain.Broker = (*PaperBroker)(nil)

// Connect marks the broker connected; a paper broker has no real session.
func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

// Disconnect marks the broker disconnected.
func (b *PaperBroker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

// IsConnected reports connection state.
func (b *PaperBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// GetAccountValue returns cash plus the mark-to-market value of all
// open positions at current quotes.
func (b *PaperBroker) GetAccountValue(ctx context.Context) (money.Decimal, error) {
	b.mu.Lock()
	cash := b.cash
	symbols := make([]string, 0, len(b.positions))
	for s := range b.positions {
		symbols = append(symbols, s)
	}
	positions := make(map[string]*domain.BrokerPosition, len(b.positions))
	for k, v := range b.positions {
		cp := *v
		positions[k] = &cp
	}
	b.mu.Unlock()

	total := cash
	for _, symbol := range symbols {
		pos := positions[symbol]
		q, err := b.quotes.GetQuote(ctx, symbol)
		if err != nil {
			continue
		}
		value := q.Mid.Mul(decimal.NewFromInt(pos.Shares))
		total = total.Add(value)
	}
	return total, nil
}

// GetCashBalance returns current cash.
func (b *PaperBroker) GetCashBalance(ctx context.Context) (money.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash, nil
}

// GetPositions returns a snapshot of all open positions.
func (b *PaperBroker) GetPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}

// GetPosition returns the open position for symbol, or nil if none.
func (b *PaperBroker) GetPosition(ctx context.Context, symbol string) (*domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// GetQuote delegates to the injected quote source (live → cached → simulated).
func (b *PaperBroker) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return b.quotes.GetQuote(ctx, symbol)
}

// GetOrderStatus returns the recorded order by ID.
func (b *PaperBroker) GetOrderStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s not found", domain.ErrInvariant, orderID)
	}
	cp := *o
	return &cp, nil
}

// CancelOrder is a no-op beyond marking status, since paper fills are
// immediate: by the time a caller can cancel, the order is already terminal.
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s not found", domain.ErrInvariant, orderID)
	}
	if o.Status == domain.OrderFilled {
		return fmt.Errorf("%w: order %s already filled", domain.ErrInvariant, orderID)
	}
	o.Status = domain.OrderCancelled
	return nil
}

// SubmitOrder fills a MARKET order immediately against the current quote,
// applying slippage and commission, and mutates cash/positions on success.
// Rejections never mutate state (§4.2 failure semantics).
func (b *PaperBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResponse, error) {
	quote, err := b.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return domain.OrderResponse{}, fmt.Errorf("failed to get quote: %w", err)
	}

	fillPrice := b.fillPrice(quote, req.Side)

	b.mu.Lock()
	defer b.mu.Unlock()

	order := domain.Order{
		OrderID:     domain.NewID("ord"),
		Symbol:      req.Symbol,
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		TimeInForce: req.TimeInForce,
		SubmittedAt: time.Now().UTC(),
		Reason:      req.Reason,
	}

	switch req.Side {
	case domain.SideBuy:
		cost := fillPrice.Mul(decimal.NewFromInt(req.Quantity)).Add(b.commission)
		if cost.GreaterThan(b.cash) {
			order.Status = domain.OrderRejected
			order.ErrorMessage = "insufficient cash"
			b.orders[order.OrderID] = &order
			return domain.OrderResponse{Order: order, Err: fmt.Errorf("%w: insufficient cash for %s", domain.ErrCapacity, req.Symbol)}, nil
		}
		b.cash = b.cash.Sub(cost)
		b.applyBuy(req.Symbol, req.Quantity, fillPrice)

	case domain.SideSell:
		pos, ok := b.positions[req.Symbol]
		if !ok || pos.Shares < req.Quantity {
			order.Status = domain.OrderRejected
			order.ErrorMessage = "no open position of sufficient size"
			b.orders[order.OrderID] = &order
			return domain.OrderResponse{Order: order, Err: fmt.Errorf("%w: no open position of sufficient size for %s", domain.ErrInvariant, req.Symbol)}, nil
		}
		proceeds := fillPrice.Mul(decimal.NewFromInt(req.Quantity)).Sub(b.commission)
		b.cash = b.cash.Add(proceeds)
		b.applySell(req.Symbol, req.Quantity)
	}

	order.Status = domain.OrderFilled
	order.FilledQty = req.Quantity
	order.FilledAvgPrice = &fillPrice
	order.Commission = b.commission
	filledAt := time.Now().UTC()
	order.FilledAt = &filledAt

	b.orders[order.OrderID] = &order

	b.log.Info().
		Str("order_id", order.OrderID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int64("qty", req.Quantity).
		Str("fill_price", fillPrice.String()).
		Msg("Order filled")

	return domain.OrderResponse{Order: order}, nil
}

// fillPrice computes the deterministic slippage-adjusted fill price:
// BUY uses ask plus positive slippage, SELL uses bid minus positive slippage.
func (b *PaperBroker) fillPrice(q domain.Quote, side domain.OrderSide) money.Decimal {
	slippage := q.Mid.Mul(decimal.NewFromFloat(b.slippageBps / 10_000.0))
	if side == domain.SideBuy {
		return q.Ask.Add(slippage)
	}
	return q.Bid.Sub(slippage)
}

// applyBuy updates the position book using weighted-average cost basis:
// new_avg = (old_avg*old_qty + fill*qty) / (old_qty+qty).
func (b *PaperBroker) applyBuy(symbol string, qty int64, fillPrice money.Decimal) {
	existing, ok := b.positions[symbol]
	if !ok {
		b.positions[symbol] = &domain.BrokerPosition{
			Symbol:      symbol,
			Direction:   domain.DirectionLong,
			Shares:      qty,
			AverageCost: fillPrice,
		}
		return
	}
	oldNotional := existing.AverageCost.Mul(decimal.NewFromInt(existing.Shares))
	newNotional := fillPrice.Mul(decimal.NewFromInt(qty))
	totalShares := existing.Shares + qty
	existing.AverageCost = oldNotional.Add(newNotional).Div(decimal.NewFromInt(totalShares))
	existing.Shares = totalShares
}

// applySell reduces or clears a position; the realized P&L calculation
// itself belongs to the order manager, which knows the position's
// originating entry price and exit reason.
func (b *PaperBroker) applySell(symbol string, qty int64) {
	pos := b.positions[symbol]
	pos.Shares -= qty
	if pos.Shares == 0 {
		delete(b.positions, symbol)
	}
}

package broker

import (
	"context"
	"testing"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T, cash float64) *PaperBroker {
	t.Helper()
	quotes := marketdata.NewSimulatedQuoteSource(1)
	return NewPaperBroker(1, money.FromFloat(cash), quotes, zerolog.Nop())
}

func TestSubmitOrderBuyThenSellRoundTrips(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 100000)

	buyResp, err := b.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "AAPL", Side: domain.SideBuy, OrderType: domain.OrderMarket, Quantity: 10, Reason: "ENTRY",
	})
	require.NoError(t, err)
	require.Nil(t, buyResp.Err)
	assert.Equal(t, domain.OrderFilled, buyResp.Order.Status)

	pos, err := b.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(10), pos.Shares)

	sellResp, err := b.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "AAPL", Side: domain.SideSell, OrderType: domain.OrderMarket, Quantity: 10, Reason: "EXIT",
	})
	require.NoError(t, err)
	require.Nil(t, sellResp.Err)

	pos, err = b.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestSubmitOrderBuyRejectedOnInsufficientCash(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 10)

	resp, err := b.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "AAPL", Side: domain.SideBuy, OrderType: domain.OrderMarket, Quantity: 1000, Reason: "ENTRY",
	})
	require.NoError(t, err)
	require.Error(t, resp.Err)
	assert.Equal(t, domain.OrderRejected, resp.Order.Status)

	cash, err := b.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(money.FromFloat(10)))
}

func TestSubmitOrderSellRejectedWithoutPosition(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 100000)

	resp, err := b.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "AAPL", Side: domain.SideSell, OrderType: domain.OrderMarket, Quantity: 10, Reason: "EXIT",
	})
	require.NoError(t, err)
	require.Error(t, resp.Err)
	assert.Equal(t, domain.OrderRejected, resp.Order.Status)
}

func TestWeightedAverageCostBasisOnAdditions(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t, 1000000)

	_, err := b.SubmitOrder(ctx, domain.OrderRequest{Symbol: "AAPL", Side: domain.SideBuy, OrderType: domain.OrderMarket, Quantity: 10, Reason: "ENTRY"})
	require.NoError(t, err)
	first, err := b.GetPosition(ctx, "AAPL")
	require.NoError(t, err)

	resp, err := b.SubmitOrder(ctx, domain.OrderRequest{Symbol: "AAPL", Side: domain.SideBuy, OrderType: domain.OrderMarket, Quantity: 10, Reason: "ENTRY"})
	require.NoError(t, err)
	second, err := b.GetPosition(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int64(20), second.Shares)
	// Since the simulated quote source is deterministic but moves between
	// calls, the new average must lie between the two fill prices (and
	// equal both when they coincide).
	assert.False(t, second.AverageCost.IsZero())
	require.NotNil(t, resp.Order.FilledAvgPrice)
	lo, hi := first.AverageCost, *resp.Order.FilledAvgPrice
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	assert.True(t, second.AverageCost.GreaterThanOrEqual(lo) && second.AverageCost.LessThanOrEqual(hi))
}

func TestFillPriceAppliesSlippageDirectionally(t *testing.T) {
	b := newTestBroker(t, 100000)
	q := domain.Quote{Symbol: "AAPL", Mid: money.FromFloat(100), Bid: money.FromFloat(99.9), Ask: money.FromFloat(100.1)}

	buyFill := b.fillPrice(q, domain.SideBuy)
	sellFill := b.fillPrice(q, domain.SideSell)

	assert.True(t, buyFill.GreaterThan(q.Ask.Sub(decimal.NewFromFloat(0.0001))))
	assert.True(t, sellFill.LessThan(q.Bid.Add(decimal.NewFromFloat(0.0001))))
	assert.True(t, buyFill.GreaterThan(sellFill))
}

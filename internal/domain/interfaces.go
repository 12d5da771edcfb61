package domain

import (
	"context"
	"time"

	"github.com/aristath/signalcycle/pkg/money"
)

// OrderRequest is what a caller submits to a Broker.
type OrderRequest struct {
	Symbol      string
	Side        OrderSide
	OrderType   OrderType
	Quantity    int64
	LimitPrice  *money.Decimal
	StopPrice   *money.Decimal
	TimeInForce string
	Reason      string
}

// OrderResponse is the broker's reply to a submitted order.
type OrderResponse struct {
	Order Order
	Err   error
}

// BrokerPosition is the broker's view of a held position for one symbol.
type BrokerPosition struct {
	Symbol      string
	Direction   Direction
	Shares      int64
	AverageCost money.Decimal
}

// Quote is a bid/ask snapshot for a symbol.
type Quote struct {
	Symbol    string
	Bid       money.Decimal
	Ask       money.Decimal
	Mid       money.Decimal
	Timestamp time.Time
}

// Broker is the capability set every broker adapter (paper or live)
// implements, replacing an inheritance-based BaseBroker with a narrow
// interface (§9 design notes).
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	GetAccountValue(ctx context.Context) (money.Decimal, error)
	GetCashBalance(ctx context.Context) (money.Decimal, error)
	GetPositions(ctx context.Context) ([]BrokerPosition, error)
	GetPosition(ctx context.Context, symbol string) (*BrokerPosition, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (*Order, error)
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// MarketSummary bundles every market-data callback for one symbol.
type MarketSummary struct {
	Symbol            string
	CurrentPrice      *money.Decimal
	AvgDailyVolumeUSD *money.Decimal
	ATR               *float64
	BidAskSpread      *money.Decimal
	DaysToEarnings    *int
	Timestamp         time.Time
}

// MarketDataProvider is the capability set consumed from market-data
// adapters (§4.1). Every callback may return nil: callers must be
// null-safe and choose, per use site, to degrade permissively or
// conservatively when data is missing.
type MarketDataProvider interface {
	CurrentPrice(ctx context.Context, symbol string) (*money.Decimal, error)
	AvgDailyVolumeUSD(ctx context.Context, symbol string, days int) (*money.Decimal, error)
	ATR(ctx context.Context, symbol string, period int) (*float64, error)
	BidAskSpread(ctx context.Context, symbol string) (*money.Decimal, error)
	DaysToNextEarnings(ctx context.Context, symbol string) (*int, error)
	Summary(ctx context.Context, symbol string) (MarketSummary, error)
}

// RawSignalRecord is a heterogeneous, source-specific payload before transform.
type RawSignalRecord struct {
	Source SignalSource
	Raw    map[string]interface{}
}

// SignalCandidate is the normalized output of a fetcher's Transform step,
// before dedup, quality filtering, and scoring.
type SignalCandidate struct {
	Source           SignalSource
	Symbol           string
	Direction        Direction
	FilerName        string
	FilerID          string
	TransactionDate  time.Time
	FilingDate       time.Time
	TransactionValue money.Decimal
	Shares           *float64
	Price            *money.Decimal
}

// Fetcher is the capability set every signal source adapter implements
// (§6's "Signal source adapter (consumed)").
type Fetcher interface {
	Source() SignalSource
	FetchRecent(ctx context.Context) ([]RawSignalRecord, error)
	Transform(raw RawSignalRecord) (SignalCandidate, error)
}

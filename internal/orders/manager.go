// Package orders implements the order manager and emergency liquidation
// (C9): entry/exit/partial-close order creation against a domain.Broker,
// and a pluggable liquidation policy for drawdown-gate-driven force closes.
package orders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Manager submits entry/exit/partial-close orders against one scenario's
// broker and produces the resulting Position mutations.
type Manager struct {
	broker domain.Broker
	log    zerolog.Logger
}

// New creates an order manager bound to one scenario's broker.
func New(broker domain.Broker, log zerolog.Logger) *Manager {
	return &Manager{broker: broker, log: log.With().Str("component", "orders").Logger()}
}

// Entry submits a MARKET order to open a position and, on fill, returns a
// new PENDING-turned-OPEN position.
func (m *Manager) Entry(ctx context.Context, scenarioID, cycleID string, alloc domain.SignalCandidate, shares int64, direction domain.Direction, tier domain.ConvictionTier, sourceSignals []string, roundStart, roundExpiry time.Time) (domain.Position, error) {
	side := domain.SideBuy
	if direction == domain.DirectionShort {
		side = domain.SideSell
	}

	resp, err := m.broker.SubmitOrder(ctx, domain.OrderRequest{
		Symbol:    alloc.Symbol,
		Side:      side,
		OrderType: domain.OrderMarket,
		Quantity:  shares,
		Reason:    string(domain.ReasonEntry),
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("entry order submission failed: %w", err)
	}
	if resp.Err != nil {
		return domain.Position{}, fmt.Errorf("%w: entry rejected for %s", resp.Err, alloc.Symbol)
	}

	entryPrice := money.Zero
	if resp.Order.FilledAvgPrice != nil {
		entryPrice = *resp.Order.FilledAvgPrice
	}
	entryValue := entryPrice.Mul(decimal.NewFromInt(shares))

	return domain.Position{
		PositionID:        domain.NewID("pos"),
		ScenarioID:        scenarioID,
		CycleID:           cycleID,
		Symbol:            alloc.Symbol,
		Direction:         direction,
		Shares:            shares,
		EntryDate:         time.Now().UTC(),
		EntryPrice:        entryPrice,
		EntryValue:        entryValue,
		ConvictionTier:    tier,
		SourceSignals:     sourceSignals,
		RoundStart:        roundStart,
		RoundExpiry:       roundExpiry,
		Status:            domain.PositionOpen,
	}, nil
}

// Exit closes a position in full, computing realized P&L from entry to
// fill price.
func (m *Manager) Exit(ctx context.Context, pos domain.Position, reason domain.ExitReason) (domain.Position, error) {
	side := domain.SideSell
	if pos.Direction == domain.DirectionShort {
		side = domain.SideBuy
	}

	resp, err := m.broker.SubmitOrder(ctx, domain.OrderRequest{
		Symbol:    pos.Symbol,
		Side:      side,
		OrderType: domain.OrderMarket,
		Quantity:  pos.Shares,
		Reason:    exitReasonToOrderReason(reason),
	})
	if err != nil {
		return pos, fmt.Errorf("exit order submission failed: %w", err)
	}
	if resp.Err != nil {
		return pos, fmt.Errorf("%w: exit rejected for %s", resp.Err, pos.Symbol)
	}

	exitPrice := money.Zero
	if resp.Order.FilledAvgPrice != nil {
		exitPrice = *resp.Order.FilledAvgPrice
	}
	commission := resp.Order.Commission

	realized := realizedPnL(pos.Direction, pos.EntryPrice, exitPrice, pos.Shares, commission)
	returnPct := returnPctOf(realized, pos.EntryValue)

	now := time.Now().UTC()
	exitValue := exitPrice.Mul(decimal.NewFromInt(pos.Shares))

	pos.ExitDate = &now
	pos.ExitPrice = &exitPrice
	pos.ExitValue = &exitValue
	pos.RealizedPnL = &realized
	pos.ReturnPct = &returnPct
	pos.ExitReason = reason
	pos.Status = domain.PositionClosed
	pos.Shares = 0

	return pos, nil
}

// PartialClose closes a share subset, reducing shares and accumulating
// partial realized P&L; the position stays OPEN unless shares reach 0.
func (m *Manager) PartialClose(ctx context.Context, pos domain.Position, qty int64, reason domain.ExitReason) (domain.Position, money.Decimal, error) {
	if qty <= 0 || qty > pos.Shares {
		return pos, money.Zero, fmt.Errorf("%w: invalid partial close quantity for %s", domain.ErrInvariant, pos.Symbol)
	}

	side := domain.SideSell
	if pos.Direction == domain.DirectionShort {
		side = domain.SideBuy
	}

	resp, err := m.broker.SubmitOrder(ctx, domain.OrderRequest{
		Symbol:    pos.Symbol,
		Side:      side,
		OrderType: domain.OrderMarket,
		Quantity:  qty,
		Reason:    exitReasonToOrderReason(reason),
	})
	if err != nil {
		return pos, money.Zero, fmt.Errorf("partial close order submission failed: %w", err)
	}
	if resp.Err != nil {
		return pos, money.Zero, fmt.Errorf("%w: partial close rejected for %s", resp.Err, pos.Symbol)
	}

	exitPrice := money.Zero
	if resp.Order.FilledAvgPrice != nil {
		exitPrice = *resp.Order.FilledAvgPrice
	}
	partialRealized := realizedPnL(pos.Direction, pos.EntryPrice, exitPrice, qty, resp.Order.Commission)

	pos.Shares -= qty
	if pos.Shares == 0 {
		now := time.Now().UTC()
		pos.ExitDate = &now
		pos.ExitPrice = &exitPrice
		pos.RealizedPnL = &partialRealized
		pos.ExitReason = reason
		pos.Status = domain.PositionClosed
	}

	return pos, partialRealized, nil
}

func realizedPnL(direction domain.Direction, entryPrice, exitPrice money.Decimal, shares int64, commission money.Decimal) money.Decimal {
	diff := exitPrice.Sub(entryPrice)
	if direction == domain.DirectionShort {
		diff = entryPrice.Sub(exitPrice)
	}
	return diff.Mul(decimal.NewFromInt(shares)).Sub(commission)
}

func returnPctOf(realized, entryValue money.Decimal) float64 {
	if entryValue.IsZero() {
		return 0
	}
	v, _ := realized.Div(entryValue).Float64()
	return v
}

func exitReasonToOrderReason(r domain.ExitReason) string {
	switch r {
	case domain.ExitEscalation:
		return string(domain.ReasonTierEscalation)
	case domain.ExitReallocation:
		return string(domain.ReasonReallocation)
	case domain.ExitStop:
		return string(domain.ReasonStop)
	case domain.ExitExpiry:
		return string(domain.ReasonExpiry)
	case domain.ExitEmergency:
		return string(domain.ReasonEmergencyPrefix)
	default:
		return string(domain.ReasonExit)
	}
}

// roundShares rounds a float share count to the nearest integer, minimum 1.
func roundShares(f float64) int64 {
	r := int64(math.Round(f))
	if r < 1 {
		return 1
	}
	return r
}

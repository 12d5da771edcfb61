package orders

import (
	"context"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
)

// LiquidationLevel identifies the severity of a forced liquidation pass.
type LiquidationLevel string

const (
	LevelAll LiquidationLevel = "ALL"
)

// LiquidationPolicy maps a (level, tier) pair to the fraction of a
// position to close. A zero or negative ratio means "not eligible."
type LiquidationPolicy func(level LiquidationLevel, tier domain.ConvictionTier) float64

// NuclearPolicy is the shipped instantiation for the NUCLEAR gate: every
// tier, full close, per §4.7's "a common instantiation" language.
func NuclearPolicy(level LiquidationLevel, tier domain.ConvictionTier) float64 {
	return 1.0
}

// LiquidatedPosition is one position's outcome within a liquidation pass.
type LiquidatedPosition struct {
	PositionID  string
	Symbol      string
	Tier        domain.ConvictionTier
	SharesClosed int64
	EntryPrice  money.Decimal
	ExitPrice   money.Decimal
	PartialPnL  money.Decimal
	Value       money.Decimal
}

// LiquidationResult accumulates the outcome of one Liquidate call.
type LiquidationResult struct {
	Closed              []LiquidatedPosition
	Failed              []string // position IDs
	TotalValueLiquidated money.Decimal
}

// Liquidate applies policy to every open position, closing fully or
// partially per the computed ratio, and accumulates results. A position
// whose close order fails is recorded in Failed and left untouched —
// liquidation is best-effort per position, not all-or-nothing.
func (m *Manager) Liquidate(ctx context.Context, positions []domain.Position, level LiquidationLevel, policy LiquidationPolicy) (LiquidationResult, []domain.Position) {
	result := LiquidationResult{TotalValueLiquidated: money.Zero}
	updated := make([]domain.Position, 0, len(positions))

	for _, pos := range positions {
		if pos.Status != domain.PositionOpen {
			updated = append(updated, pos)
			continue
		}

		ratio := policy(level, pos.ConvictionTier)
		if ratio <= 0 {
			updated = append(updated, pos)
			continue
		}

		if ratio >= 1.0 {
			closed, err := m.Exit(ctx, pos, domain.ExitEmergency)
			if err != nil {
				result.Failed = append(result.Failed, pos.PositionID)
				updated = append(updated, pos)
				continue
			}
			updated = append(updated, closed)
			lp := LiquidatedPosition{
				PositionID:   closed.PositionID,
				Symbol:       closed.Symbol,
				Tier:         closed.ConvictionTier,
				SharesClosed: pos.Shares,
				EntryPrice:   closed.EntryPrice,
			}
			if closed.ExitPrice != nil {
				lp.ExitPrice = *closed.ExitPrice
			}
			if closed.RealizedPnL != nil {
				lp.PartialPnL = *closed.RealizedPnL
			}
			if closed.ExitValue != nil {
				lp.Value = *closed.ExitValue
				result.TotalValueLiquidated = result.TotalValueLiquidated.Add(lp.Value)
			}
			result.Closed = append(result.Closed, lp)
			continue
		}

		qty := roundShares(float64(pos.Shares) * ratio)
		if qty > pos.Shares {
			qty = pos.Shares
		}
		closedPartial, partialPnL, err := m.PartialClose(ctx, pos, qty, domain.ExitEmergency)
		if err != nil {
			result.Failed = append(result.Failed, pos.PositionID)
			updated = append(updated, pos)
			continue
		}
		updated = append(updated, closedPartial)
		result.Closed = append(result.Closed, LiquidatedPosition{
			PositionID:   pos.PositionID,
			Symbol:       pos.Symbol,
			Tier:         pos.ConvictionTier,
			SharesClosed: qty,
			EntryPrice:   pos.EntryPrice,
			PartialPnL:   partialPnL,
		})
		result.TotalValueLiquidated = result.TotalValueLiquidated.Add(partialPnL)
	}

	return result, updated
}

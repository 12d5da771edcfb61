// Package risk implements the risk manager (C6): drawdown gates, ATR stop
// distances by phase, and cash reserve floors by phase. Every function here
// is pure over CycleState/Position so the boundary cases in spec §8 are
// trivially unit-testable without a broker or database.
package risk

import "github.com/aristath/signalcycle/internal/domain"

// Gate computes the drawdown gate status from current and max drawdown
// (both as positive fractions, e.g. 0.05 for 5%), picking the highest
// whose current or max threshold is met (§4.6; either, not both).
func Gate(currentDrawdown, maxDrawdown float64) domain.DrawdownGate {
	switch {
	case currentDrawdown >= 0.15 || maxDrawdown >= 0.20:
		return domain.GateNuclear
	case currentDrawdown >= 0.10 || maxDrawdown >= 0.15:
		return domain.GateRed
	case currentDrawdown >= 0.05 || maxDrawdown >= 0.10:
		return domain.GateYellow
	default:
		return domain.GateGreen
	}
}

// atrStopMultiplier is the ATR multiple used to place a stop, by phase.
func atrStopMultiplier(phase domain.Phase) float64 {
	switch phase {
	case domain.PhaseLoad:
		return 2.0
	case domain.PhaseActive:
		return 1.5
	case domain.PhaseScaleOut:
		return 1.0
	default: // FORCE_CLOSE
		return 0.5
	}
}

// StopPrice computes the ATR-based stop for a position, or nil if no ATR
// is available (no stop is set in that case, per §4.6).
func StopPrice(entryPrice float64, atr *float64, direction domain.Direction, phase domain.Phase) *float64 {
	if atr == nil {
		return nil
	}
	distance := *atr * atrStopMultiplier(phase)
	var stop float64
	if direction == domain.DirectionShort {
		stop = entryPrice + distance
	} else {
		stop = entryPrice - distance
	}
	return &stop
}

// CashReserveFloor returns the minimum fraction of portfolio value that
// must remain uninvested during the given phase (§4.6).
func CashReserveFloor(phase domain.Phase) float64 {
	switch phase {
	case domain.PhaseLoad:
		return 0.30
	case domain.PhaseActive:
		return 0.20
	case domain.PhaseScaleOut:
		return 0.60
	default: // FORCE_CLOSE
		return 1.00
	}
}

// MaxPerPositionRiskPct is the portfolio fraction a single position's
// unrealized loss may represent before it is flagged for risk review.
const MaxPerPositionRiskPct = 0.02

// PositionRiskPct computes |unrealized_pnl| / position_value for risk review.
func PositionRiskPct(unrealizedPnL, positionValue float64) float64 {
	if positionValue == 0 {
		return 0
	}
	v := unrealizedPnL / positionValue
	if v < 0 {
		v = -v
	}
	return v
}

// ExceedsPositionRiskLimit reports whether a position's risk exceeds the
// 2%-of-portfolio per-position limit (§4.6), flagging it for review and
// possible partial close.
func ExceedsPositionRiskLimit(unrealizedPnL, positionValue, portfolioValue float64) bool {
	if portfolioValue == 0 {
		return false
	}
	riskOfPortfolio := (unrealizedPnL) / portfolioValue
	if riskOfPortfolio < 0 {
		riskOfPortfolio = -riskOfPortfolio
	}
	return riskOfPortfolio > MaxPerPositionRiskPct
}

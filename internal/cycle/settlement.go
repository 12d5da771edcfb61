package cycle

import (
	"context"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/shopspring/decimal"
)

// StepResult is one auditable step of the settlement pipeline, mirroring
// the teacher's itemized per-step reconciliation results rather than a
// single pass/fail boolean.
type StepResult struct {
	Step      string    `json:"step"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SettlementReport is the structured result of one settlement attempt.
type SettlementReport struct {
	CycleID          string       `json:"cycle_id"`
	Reason           CompletionReason `json:"reason"`
	Valid            bool         `json:"valid"`
	Steps            []StepResult `json:"steps"`
	TotalInvested    money.Decimal `json:"total_invested"`
	RealizedPnL      money.Decimal `json:"realized_pnl"`
	ReturnPct        float64       `json:"return_pct"`
	WinRate          float64       `json:"win_rate"`
	AvgWinner        money.Decimal `json:"avg_winner"`
	AvgLoser         money.Decimal `json:"avg_loser"`
	PositionsOpened  int           `json:"positions_opened"`
	PositionsClosed  int           `json:"positions_closed"`
	WithdrawnProfit  money.Decimal `json:"withdrawn_profit"`
	NextCycleCapital money.Decimal `json:"next_cycle_capital"`
	NextCycleID      string        `json:"next_cycle_id,omitempty"`
}

func (r *SettlementReport) step(name string, success bool, detail string) {
	r.Steps = append(r.Steps, StepResult{Step: name, Success: success, Detail: detail, Timestamp: time.Now().UTC()})
}

// Settle runs the §4.5 settlement pipeline: validate, force-close all open
// positions, compute performance, withdraw profit, reset capital for the
// next cycle, mark COMPLETED, create the next cycle. Each step is recorded
// individually so a partial failure is visible in the returned report even
// though the pipeline itself is best-effort, not transactional.
func (m *Manager) Settle(ctx context.Context, c domain.Cycle, reason CompletionReason, allPositions []domain.Position, liquidationPolicy orders.LiquidationPolicy) (SettlementReport, domain.Cycle, error) {
	report := SettlementReport{CycleID: c.CycleID, Reason: reason}

	if reason != CompletionEmergency {
		valid, err := m.IsValid(ctx, c, time.Now().UTC())
		if err != nil {
			report.step("validate", false, err.Error())
			return report, c, err
		}
		report.Valid = valid
		report.step("validate", valid, "")
		if !valid {
			return report, c, nil
		}
	} else {
		report.Valid = true
		report.step("validate", true, "emergency settlement bypasses the validity gate")
	}

	liqResult, updatedPositions := m.orders.Liquidate(ctx, allPositions, orders.LevelAll, liquidationPolicy)
	report.step("force_close_open_positions", len(liqResult.Failed) == 0, failuresSummary(liqResult.Failed))
	for _, p := range updatedPositions {
		if p.Status != domain.PositionClosed && p.Status != domain.PositionForceClosed {
			continue
		}
		if err := m.positions.Update(ctx, p); err != nil {
			m.log.Error().Err(err).Str("position_id", p.PositionID).Msg("failed to persist liquidated position")
		}
	}
	if m.audit != nil {
		if _, err := m.audit.RecordNow("cycle", c.CycleID, "CYCLE_FORCE_CLOSE", "cycle_manager", "liquidate", string(reason), allPositions, liqResult); err != nil {
			m.log.Warn().Err(err).Msg("failed to audit force-close step")
		}
	}

	perf := computePerformance(updatedPositions)
	report.TotalInvested = perf.totalInvested
	report.RealizedPnL = perf.realizedPnL
	report.ReturnPct = perf.returnPct
	report.WinRate = perf.winRate
	report.AvgWinner = perf.avgWinner
	report.AvgLoser = perf.avgLoser
	report.PositionsOpened = len(updatedPositions)
	report.PositionsClosed = perf.closedCount
	report.step("compute_performance", true, "")

	withdrawn := money.Zero
	if report.RealizedPnL.IsPositive() {
		withdrawn = report.RealizedPnL.Mul(decimal.NewFromFloat(ProfitWithdrawalPct))
	}
	report.WithdrawnProfit = withdrawn
	report.step("withdraw_profit", true, "")

	nextCapital := c.StartingCapital.Mul(decimal.NewFromFloat(CapitalResetPct))
	report.NextCycleCapital = nextCapital
	report.step("reset_capital", true, "")

	c.Status = domain.CycleCompleted
	c.TotalInvested = report.TotalInvested
	c.TotalPnL = report.RealizedPnL
	c.TotalReturn = report.ReturnPct
	c.WinRate = report.WinRate
	c.AvgWinner = report.AvgWinner
	c.AvgLoser = report.AvgLoser
	c.PositionsOpened = report.PositionsOpened
	c.PositionsClosed = report.PositionsClosed
	if err := m.cycles.Update(ctx, c); err != nil {
		report.step("mark_completed", false, err.Error())
		return report, c, err
	}
	report.step("mark_completed", true, "")

	next, err := m.Create(ctx, c.ScenarioID, c.DurationDays, nextCapital)
	if err != nil {
		report.step("create_next_cycle", false, err.Error())
		return report, c, err
	}
	report.NextCycleID = next.CycleID
	report.step("create_next_cycle", true, "")

	if m.audit != nil {
		if _, err := m.audit.RecordNow("cycle", c.CycleID, "CYCLE_SETTLED", "cycle_manager", "settle", string(reason), nil, report); err != nil {
			m.log.Warn().Err(err).Msg("failed to audit settlement")
		}
	}

	return report, c, nil
}

type performance struct {
	totalInvested money.Decimal
	realizedPnL   money.Decimal
	returnPct     float64
	winRate       float64
	avgWinner     money.Decimal
	avgLoser      money.Decimal
	closedCount   int
}

func computePerformance(positions []domain.Position) performance {
	perf := performance{totalInvested: money.Zero, realizedPnL: money.Zero, avgWinner: money.Zero, avgLoser: money.Zero}

	var winners, losers int
	winnerTotal, loserTotal := money.Zero, money.Zero

	for _, p := range positions {
		perf.totalInvested = perf.totalInvested.Add(p.EntryValue)
		if p.Status != domain.PositionClosed || p.RealizedPnL == nil {
			continue
		}
		perf.closedCount++
		perf.realizedPnL = perf.realizedPnL.Add(*p.RealizedPnL)
		if p.RealizedPnL.IsPositive() {
			winners++
			winnerTotal = winnerTotal.Add(*p.RealizedPnL)
		} else if p.RealizedPnL.IsNegative() {
			losers++
			loserTotal = loserTotal.Add(*p.RealizedPnL)
		}
	}

	if perf.closedCount > 0 {
		perf.winRate = float64(winners) / float64(perf.closedCount)
	}
	if winners > 0 {
		perf.avgWinner = winnerTotal.Div(decimal.NewFromInt(int64(winners)))
	}
	if losers > 0 {
		perf.avgLoser = loserTotal.Div(decimal.NewFromInt(int64(losers)))
	}
	if !perf.totalInvested.IsZero() {
		v, _ := perf.realizedPnL.Div(perf.totalInvested).Float64()
		perf.returnPct = v
	}
	return perf
}

func failuresSummary(failed []string) string {
	if len(failed) == 0 {
		return ""
	}
	return "failed to close: " + joinStrings(failed)
}

func joinStrings(xs []string) string {
	out := ""
	for i, x := range xs {
		if i > 0 {
			out += ", "
		}
		out += x
	}
	return out
}

// Package app wires the per-scenario repositories, runtimes, and risk
// calculations into the few capabilities internal/scheduler's jobs need
// that no single repository owns outright: resolving each scenario's
// current allocation inputs, checking and settling completed cycles
// across the whole roster, and marking positions to market. This mirrors
// the teacher's own pattern of small composition-level types living
// alongside cmd/server/main.go rather than inside a storage package.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/database"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/events"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/risk"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
)

// Coordinator composes the signal, cycle, and position repositories with
// the scenario runtimes to serve the scheduler's allocation-input,
// completion-check, and mark-to-market jobs.
type Coordinator struct {
	signals   *database.SignalRepository
	cycles    *database.CycleRepository
	positions *database.ScenarioPositions
	runtimes  map[string]*scenario.Runtime
	events    *events.Manager
	log       zerolog.Logger
}

// NewCoordinator builds a coordinator over the given repositories and
// scenario runtimes, keyed by scenario_id. events may be nil, in which
// case cycle-settlement and drawdown-gate observability events are
// simply not emitted.
func NewCoordinator(signals *database.SignalRepository, cycles *database.CycleRepository, positions *database.ScenarioPositions, runtimes map[string]*scenario.Runtime, eventMgr *events.Manager, log zerolog.Logger) *Coordinator {
	return &Coordinator{signals: signals, cycles: cycles, positions: positions, runtimes: runtimes, events: eventMgr, log: log.With().Str("component", "app").Logger()}
}

// BuildInputs resolves each scenario's current cycle, cycle state, and
// ranked ACTIVE candidate signals ahead of one allocation pass. A
// scenario without an active cycle is omitted — the allocate job has
// nothing to do for it until one is started.
func (c *Coordinator) BuildInputs(ctx context.Context) (map[string]scenario.ScenarioInput, error) {
	active, err := c.signals.ActiveSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active signals: %w", err)
	}

	out := make(map[string]scenario.ScenarioInput, len(c.runtimes))
	for scenarioID, rt := range c.runtimes {
		cyc, ok, err := c.cycles.ActiveCycle(ctx, scenarioID)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: failed to resolve active cycle: %w", scenarioID, err)
		}
		if !ok {
			continue
		}
		state, err := c.cycles.CycleState(ctx, cyc.CycleID)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: failed to resolve cycle state: %w", scenarioID, err)
		}

		candidates := c.candidatesFor(ctx, rt, active)
		out[scenarioID] = scenario.ScenarioInput{Cycle: cyc, State: state, Candidates: candidates}
	}
	return out, nil
}

// candidatesFor prices every ACTIVE signal against the scenario's own
// broker quote. A signal whose quote fails to resolve is skipped rather
// than failing the whole pass.
func (c *Coordinator) candidatesFor(ctx context.Context, rt *scenario.Runtime, signals []domain.Signal) []allocation.Candidate {
	candidates := make([]allocation.Candidate, 0, len(signals))
	for _, s := range signals {
		quote, err := rt.Broker.GetQuote(ctx, s.Symbol)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", s.Symbol).Msg("skipping candidate, quote unavailable")
			continue
		}
		mid, _ := quote.Mid.Float64()
		candidates = append(candidates, allocation.Candidate{Signal: s, Price: mid})
	}
	return candidates
}

// CheckAndSettleAll resolves each scenario's active cycle's completion
// reason and settles it when due, satisfying scheduler.CycleCompletionChecker.
func (c *Coordinator) CheckAndSettleAll(ctx context.Context) error {
	now := time.Now().UTC()
	for scenarioID, rt := range c.runtimes {
		cyc, ok, err := c.cycles.ActiveCycle(ctx, scenarioID)
		if err != nil {
			return fmt.Errorf("scenario %s: failed to resolve active cycle: %w", scenarioID, err)
		}
		if !ok {
			continue
		}
		state, err := c.cycles.CycleState(ctx, cyc.CycleID)
		if err != nil {
			return fmt.Errorf("scenario %s: failed to resolve cycle state: %w", scenarioID, err)
		}

		reason, err := rt.Cycle.CheckCompletion(ctx, cyc, now, state.DrawdownGateStatus)
		if err != nil {
			return fmt.Errorf("scenario %s: completion check failed: %w", scenarioID, err)
		}
		if reason == cycle.CompletionNone {
			continue
		}

		all, err := c.positions.AllPositions(ctx, scenarioID)
		if err != nil {
			return fmt.Errorf("scenario %s: failed to list positions for settlement: %w", scenarioID, err)
		}
		if _, _, err := rt.Cycle.Settle(ctx, cyc, reason, all, orders.NuclearPolicy); err != nil {
			return fmt.Errorf("scenario %s: settlement failed: %w", scenarioID, err)
		}
		if c.events != nil {
			c.events.Emit(events.CycleSettled, "cycle", map[string]interface{}{
				"scenario_id": scenarioID,
				"cycle_id":    cyc.CycleID,
				"reason":      string(reason),
			})
		}
	}
	return nil
}

// MarkUnrealized recomputes one scenario's current-day cycle state from
// its broker's latest account value, satisfying scheduler.UnrealizedMarker.
func (c *Coordinator) MarkUnrealized(ctx context.Context, scenarioID string, equity money.Decimal) error {
	cyc, ok, err := c.cycles.ActiveCycle(ctx, scenarioID)
	if err != nil {
		return fmt.Errorf("scenario %s: failed to resolve active cycle: %w", scenarioID, err)
	}
	if !ok {
		return nil
	}

	state, err := c.cycles.CycleState(ctx, cyc.CycleID)
	if err != nil {
		return fmt.Errorf("scenario %s: failed to resolve cycle state: %w", scenarioID, err)
	}

	now := time.Now().UTC()
	state.CycleID = cyc.CycleID
	state.CycleDay = cyc.CurrentDay(now)
	state.Phase = cycle.Phase(cyc, now)
	if state.StartingCapital.IsZero() {
		state.StartingCapital = cyc.StartingCapital
	}
	state.CurrentEquity = equity
	state.UnrealizedPnL = equity.Sub(state.StartingCapital).Sub(state.RealizedPnL)

	if state.HighWaterMark.IsZero() || equity.GreaterThan(state.HighWaterMark) {
		state.HighWaterMark = equity
	}
	if !state.HighWaterMark.IsZero() {
		dd, _ := state.HighWaterMark.Sub(equity).Div(state.HighWaterMark).Float64()
		if dd < 0 {
			dd = 0
		}
		state.CurrentDrawdown = dd
		if dd > state.MaxDrawdown {
			state.MaxDrawdown = dd
		}
	}
	previousGate := state.DrawdownGateStatus
	state.DrawdownGateStatus = risk.Gate(state.CurrentDrawdown, state.MaxDrawdown)
	state.CashReserveTarget = cyc.StartingCapital.Mul(money.FromFloat(risk.CashReserveFloor(state.Phase)))

	if c.events != nil && previousGate != state.DrawdownGateStatus {
		c.events.Emit(events.DrawdownGateChanged, "cycle", map[string]interface{}{
			"scenario_id": scenarioID,
			"cycle_id":    cyc.CycleID,
			"from":        string(previousGate),
			"to":          string(state.DrawdownGateStatus),
		})
	}

	return c.cycles.SaveState(ctx, state)
}

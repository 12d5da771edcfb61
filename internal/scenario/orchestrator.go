// Package scenario implements the scenario orchestrator (C11): N
// independent strategy variants run concurrently against the same signal
// feed, each with its own broker, positions, capital, and philosophy
// configuration.
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/philosophy"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
)

// Runtime bundles one scenario's independent stack: its own paper broker,
// cycle manager, allocator, philosophy engine, and order manager. No field
// here is shared across scenarios.
type Runtime struct {
	Scenario   domain.Scenario
	Broker     *broker.PaperBroker
	Cycle      *cycle.Manager
	Allocator  *allocation.CycleAllocator
	Philosophy *philosophy.Engine
	Orders     *orders.Manager
}

// PositionStore is the capability the orchestrator needs to find a
// scenario's currently open positions, sum their invested value, and
// persist both the exit and the fresh entry that a reallocation produces.
type PositionStore interface {
	OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error)
	Insert(ctx context.Context, p domain.Position) error
	Update(ctx context.Context, p domain.Position) error
}

// ScenarioInput is one scenario's allocation inputs for one invocation —
// its current cycle and derived state (phase, drawdown gate, equity),
// plus the candidate signals ranked and filtered upstream by the quality
// filter and scorer. The orchestrator itself holds no cycle-state
// computation: the caller (the scheduler's allocate job) resolves each
// scenario's current cycle/state before fanning out.
type ScenarioInput struct {
	Cycle         domain.Cycle
	State         domain.CycleState
	Candidates    []allocation.Candidate
}

// Orchestrator drives ExecuteAll across every registered scenario runtime.
type Orchestrator struct {
	runtimes  map[string]*Runtime
	positions PositionStore
	log       zerolog.Logger
}

// New creates an orchestrator over the given scenario runtimes, keyed by
// scenario_id.
func New(runtimes map[string]*Runtime, positions PositionStore, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{runtimes: runtimes, positions: positions, log: log.With().Str("component", "scenario").Logger()}
}

// ScenarioResult is one scenario's outcome within an ExecuteAll pass.
type ScenarioResult struct {
	ScenarioID  string
	Allocations []allocation.Allocation
	Err         error
}

// ExecuteAll fans out one allocation cycle per scenario concurrently. Each
// scenario's error is isolated — a failure in one scenario never rolls
// back or blocks another, matching §5's "independent variant" guarantee.
// Collection uses a buffered result channel with one goroutine per
// scenario, the same fan-out shape as the teacher's Monte Carlo path
// evaluator (internal/modules/evaluation.EvaluateMonteCarlo).
func (o *Orchestrator) ExecuteAll(ctx context.Context, inputs map[string]ScenarioInput) []ScenarioResult {
	type indexed struct {
		idx    int
		result ScenarioResult
	}

	scenarioIDs := make([]string, 0, len(o.runtimes))
	for id := range o.runtimes {
		scenarioIDs = append(scenarioIDs, id)
	}

	results := make(chan indexed, len(scenarioIDs))
	for i, id := range scenarioIDs {
		go func(idx int, scenarioID string) {
			allocs, err := o.executeOne(ctx, scenarioID, inputs[scenarioID])
			results <- indexed{idx: idx, result: ScenarioResult{ScenarioID: scenarioID, Allocations: allocs, Err: err}}
		}(i, id)
	}

	out := make([]ScenarioResult, len(scenarioIDs))
	for range scenarioIDs {
		r := <-results
		out[r.idx] = r.result
	}
	close(results)
	return out
}

// executeOne runs the allocation step for a single scenario: build the
// allocation request from its current cycle/state and its currently open
// positions, invoke the allocator, run each proposed allocation through the
// philosophy engine, then submit entry orders. A candidate allocated on a
// symbol that already has an open position is a reallocation (§4.9): the
// existing position is exited (ExitReallocation) and persisted CLOSED
// before the fresh entry is submitted, rather than being skipped.
func (o *Orchestrator) executeOne(ctx context.Context, scenarioID string, in ScenarioInput) ([]allocation.Allocation, error) {
	rt, ok := o.runtimes[scenarioID]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", scenarioID)
	}

	var open []domain.Position
	if o.positions != nil {
		if positions, err := o.positions.OpenPositions(ctx, scenarioID); err == nil {
			open = positions
		}
	}
	openBySymbol := make(map[string]domain.Position, len(open))
	invested := money.Zero
	for _, p := range open {
		openBySymbol[p.Symbol] = p
		invested = invested.Add(p.EntryValue)
	}

	req := allocation.Request{
		Phase:           cycle.Phase(in.Cycle, time.Now().UTC()),
		DrawdownGate:    in.State.DrawdownGateStatus,
		OpenPositions:   len(open),
		PortfolioValue:  toFloat(in.State.CurrentEquity),
		InvestedValue:   toFloat(invested),
		Candidates:      in.Candidates,
		ClusterCounts:   clusterCounts(in.Candidates),
		AllocationPower: rt.Philosophy.AllocationPower(),
		PabraiSettings:  rt.Philosophy.Settings().Pabrai,
	}

	allocations := rt.Allocator.Allocate(req)
	now := time.Now().UTC()

	for _, alloc := range allocations {
		tier := tierFor(in.Candidates, alloc.Symbol)

		rt.Philosophy.Evaluate(alloc.Symbol, philosophy.Decision{
			Symbol: alloc.Symbol, Direction: alloc.Direction,
			ConvictionTier: tier, WasLogged: true,
		})

		if existing, reallocating := openBySymbol[alloc.Symbol]; reallocating {
			closed, err := rt.Orders.Exit(ctx, existing, domain.ExitReallocation)
			if err != nil {
				o.log.Warn().Err(err).Str("scenario_id", scenarioID).Str("symbol", alloc.Symbol).Msg("reallocation exit failed, leaving position in place")
				continue
			}
			if o.positions != nil {
				if err := o.positions.Update(ctx, closed); err != nil {
					o.log.Error().Err(err).Str("position_id", closed.PositionID).Msg("failed to persist reallocation exit")
				}
			}
		}

		sourceSignal := domain.SignalCandidate{Symbol: alloc.Symbol, Direction: alloc.Direction}
		pos, err := rt.Orders.Entry(ctx, scenarioID, in.Cycle.CycleID, sourceSignal, alloc.Shares, alloc.Direction, tier, alloc.SourceIDs, now, in.Cycle.EndDate)
		if err != nil {
			o.log.Warn().Err(err).Str("scenario_id", scenarioID).Str("symbol", alloc.Symbol).Msg("entry order failed for allocated candidate")
			continue
		}
		if o.positions != nil {
			if err := o.positions.Insert(ctx, pos); err != nil {
				o.log.Error().Err(err).Str("position_id", pos.PositionID).Msg("failed to persist new position")
			}
		}
	}

	return allocations, nil
}

func tierFor(candidates []allocation.Candidate, symbol string) domain.ConvictionTier {
	for _, c := range candidates {
		if c.Signal.Symbol == symbol {
			return c.Signal.ConvictionTier
		}
	}
	return domain.TierReject
}

func clusterCounts(candidates []allocation.Candidate) map[string]int {
	counts := make(map[string]int)
	for _, c := range candidates {
		key := c.Signal.Symbol + "|" + string(c.Signal.Direction)
		counts[key]++
	}
	return counts
}

func toFloat(d money.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

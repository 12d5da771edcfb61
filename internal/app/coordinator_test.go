package app

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/database"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/events"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/philosophy"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *database.DB, *scenario.Runtime) {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	signals := database.NewSignalRepository(db.Conn(), zerolog.Nop())
	cycles := database.NewCycleRepository(db.Conn(), zerolog.Nop())
	positionsRepo := database.NewPositionRepository(db.Conn(), zerolog.Nop())
	scenarioPositions := database.NewScenarioPositions(positionsRepo)
	cyclePositions := database.NewCyclePositions(positionsRepo)

	quotes := marketdata.NewSimulatedQuoteSource(1)
	b := broker.NewPaperBroker(1, money.FromFloat(1_000_000), quotes, zerolog.Nop())
	om := orders.New(b, zerolog.Nop())
	cm := cycle.New(cycles, cyclePositions, om, nil, zerolog.Nop())

	rt := &scenario.Runtime{
		Scenario:   domain.Scenario{ScenarioID: "scn_1", Type: domain.ScenarioBalanced, InitialCapital: money.FromFloat(100_000)},
		Broker:     b,
		Cycle:      cm,
		Allocator:  allocation.NewCycleAllocator(),
		Philosophy: philosophy.NewEngine("scn_1", domain.DefaultPhilosophySettings()),
		Orders:     om,
	}
	runtimes := map[string]*scenario.Runtime{"scn_1": rt}

	coord := NewCoordinator(signals, cycles, scenarioPositions, runtimes, nil, zerolog.Nop())
	return coord, db, rt
}

func TestBuildInputsOmitsScenarioWithoutActiveCycle(t *testing.T) {
	ctx := context.Background()
	coord, _, _ := newTestCoordinator(t)

	inputs, err := coord.BuildInputs(ctx)
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestBuildInputsIncludesActiveSignalsAsCandidates(t *testing.T) {
	ctx := context.Background()
	coord, db, rt := newTestCoordinator(t)

	_, err := rt.Cycle.Create(ctx, "scn_1", 90, money.FromFloat(100_000))
	require.NoError(t, err)

	signals := database.NewSignalRepository(db.Conn(), zerolog.Nop())
	s := domain.Signal{
		SignalID: domain.NewID("sig"), Source: domain.SourceInsiderForm4, Symbol: "SIM1",
		Direction: domain.DirectionLong, FilerName: "Someone", Status: domain.SignalActive,
		TransactionDate: time.Now().UTC(), FilingDate: time.Now().UTC(), DiscoveredAt: time.Now().UTC(),
		Price: money.FromFloat(50), TransactionValue: money.FromFloat(50_000),
	}
	require.NoError(t, signals.Insert(ctx, s))

	inputs, err := coord.BuildInputs(ctx)
	require.NoError(t, err)
	require.Contains(t, inputs, "scn_1")
	assert.NotEmpty(t, inputs["scn_1"].Candidates)
}

func TestCheckAndSettleAllSkipsScenarioWithoutActiveCycle(t *testing.T) {
	ctx := context.Background()
	coord, _, _ := newTestCoordinator(t)
	assert.NoError(t, coord.CheckAndSettleAll(ctx))
}

func TestMarkUnrealizedUpdatesCycleState(t *testing.T) {
	ctx := context.Background()
	coord, db, rt := newTestCoordinator(t)

	c, err := rt.Cycle.Create(ctx, "scn_1", 90, money.FromFloat(100_000))
	require.NoError(t, err)

	cycles := database.NewCycleRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, cycles.SaveState(ctx, domain.CycleState{
		CycleID: c.CycleID, CycleDay: 1, Phase: domain.PhaseLoad,
		StartingCapital: money.FromFloat(100_000), CurrentEquity: money.FromFloat(100_000),
		HighWaterMark: money.FromFloat(100_000), RealizedPnL: money.Zero, UnrealizedPnL: money.Zero,
		AvgWinner: money.Zero, AvgLoser: money.Zero, DrawdownGateStatus: domain.GateGreen,
		CashReserveTarget: money.Zero, CashReserveActual: money.Zero,
	}))

	require.NoError(t, coord.MarkUnrealized(ctx, "scn_1", money.FromFloat(95_000)))

	got, err := cycles.CycleState(ctx, c.CycleID)
	require.NoError(t, err)
	assert.True(t, got.CurrentEquity.Equal(money.FromFloat(95_000)))
	assert.Greater(t, got.CurrentDrawdown, 0.0)
}

// TestMarkUnrealizedEmitsDrawdownGateChange exercises the optional
// events.Manager wiring on a gate transition. Manager has no observable
// return, so it asserts the persisted gate moved off GREEN instead.
func TestMarkUnrealizedEmitsDrawdownGateChange(t *testing.T) {
	ctx := context.Background()
	coord, db, rt := newTestCoordinator(t)
	coord.events = events.NewManager(zerolog.Nop())

	c, err := rt.Cycle.Create(ctx, "scn_1", 90, money.FromFloat(100_000))
	require.NoError(t, err)

	cycles := database.NewCycleRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, cycles.SaveState(ctx, domain.CycleState{
		CycleID: c.CycleID, CycleDay: 1, Phase: domain.PhaseLoad,
		StartingCapital: money.FromFloat(100_000), CurrentEquity: money.FromFloat(100_000),
		HighWaterMark: money.FromFloat(100_000), RealizedPnL: money.Zero, UnrealizedPnL: money.Zero,
		AvgWinner: money.Zero, AvgLoser: money.Zero, DrawdownGateStatus: domain.GateGreen,
		CashReserveTarget: money.Zero, CashReserveActual: money.Zero,
	}))

	// A steep drawdown should flip the gate away from GREEN, exercising
	// the emit path in MarkUnrealized.
	require.NoError(t, coord.MarkUnrealized(ctx, "scn_1", money.FromFloat(70_000)))

	got, err := cycles.CycleState(ctx, c.CycleID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.GateGreen, got.DrawdownGateStatus)
}

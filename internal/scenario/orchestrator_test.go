package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/philosophy"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycleStore struct{ cycles map[string]domain.Cycle }

func (s *fakeCycleStore) Insert(ctx context.Context, c domain.Cycle) error {
	s.cycles[c.CycleID] = c
	return nil
}
func (s *fakeCycleStore) Update(ctx context.Context, c domain.Cycle) error {
	s.cycles[c.CycleID] = c
	return nil
}
func (s *fakeCycleStore) Get(ctx context.Context, cycleID string) (domain.Cycle, error) {
	return s.cycles[cycleID], nil
}

type fakePositionStore struct {
	open     []domain.Position
	inserted []domain.Position
	updated  []domain.Position
}

func (s *fakePositionStore) OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return s.open, nil
}
func (s *fakePositionStore) Insert(ctx context.Context, p domain.Position) error {
	s.inserted = append(s.inserted, p)
	return nil
}
func (s *fakePositionStore) Update(ctx context.Context, p domain.Position) error {
	s.updated = append(s.updated, p)
	return nil
}

func newTestRuntime(t *testing.T, scenarioID string) *Runtime {
	t.Helper()
	quotes := marketdata.NewSimulatedQuoteSource(1)
	b := broker.NewPaperBroker(1, money.FromFloat(1_000_000), quotes, zerolog.Nop())
	om := orders.New(b, zerolog.Nop())
	cm := cycle.New(&fakeCycleStore{cycles: map[string]domain.Cycle{}}, nil, om, nil, zerolog.Nop())
	return &Runtime{
		Scenario:   domain.Scenario{ScenarioID: scenarioID, Type: domain.ScenarioBalanced},
		Broker:     b,
		Cycle:      cm,
		Allocator:  allocation.NewCycleAllocator(),
		Philosophy: philosophy.NewEngine(scenarioID, domain.DefaultPhilosophySettings()),
		Orders:     om,
	}
}

func testCycle(scenarioID string) domain.Cycle {
	now := time.Now().UTC()
	return domain.Cycle{
		CycleID: "cyc_1", ScenarioID: scenarioID, StartDate: now.AddDate(0, 0, -10),
		EndDate: now.AddDate(0, 0, 80), DurationDays: 90, Status: domain.CycleActive,
		MaxPositions: 16, TargetPositionSize: money.FromFloat(5000),
		MinPositionSize: money.FromFloat(500), MaxPositionSize: money.FromFloat(5000),
		StartingCapital: money.FromFloat(100_000),
	}
}

func testState() domain.CycleState {
	return domain.CycleState{
		CurrentEquity:      money.FromFloat(100_000),
		DrawdownGateStatus: domain.GateGreen,
	}
}

func TestExecuteAllRunsEveryRegisteredScenario(t *testing.T) {
	ctx := context.Background()
	runtimes := map[string]*Runtime{
		"scn_1": newTestRuntime(t, "scn_1"),
		"scn_2": newTestRuntime(t, "scn_2"),
	}
	o := New(runtimes, &fakePositionStore{}, zerolog.Nop())

	candidate := allocation.Candidate{
		Signal: domain.Signal{Symbol: "AAPL", Direction: domain.DirectionLong, ConvictionTier: domain.TierS, TotalScore: 0.9},
		Price:  100,
	}
	inputs := map[string]ScenarioInput{
		"scn_1": {Cycle: testCycle("scn_1"), State: testState(), Candidates: []allocation.Candidate{candidate}},
		"scn_2": {Cycle: testCycle("scn_2"), State: testState(), Candidates: []allocation.Candidate{candidate}},
	}

	results := o.ExecuteAll(ctx, inputs)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

// TestExecuteOneReallocatesSymbolAlreadyOpen exercises §4.9's
// close-then-reenter path: a candidate allocated on a symbol that
// already has an open position in this scenario must exit the existing
// position (tagged ExitReallocation) before the fresh entry is
// submitted, rather than being skipped.
func TestExecuteOneReallocatesSymbolAlreadyOpen(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, "scn_1")
	runtimes := map[string]*Runtime{"scn_1": rt}

	// Establish a genuine open position at the broker so the
	// reallocation exit has shares to sell against.
	existing, err := rt.Orders.Entry(ctx, "scn_1", "cyc_1", domain.SignalCandidate{Symbol: "AAPL", Direction: domain.DirectionLong}, 10, domain.DirectionLong, domain.TierS, nil, time.Now().UTC(), time.Now().UTC().AddDate(0, 0, 90))
	require.NoError(t, err)

	store := &fakePositionStore{open: []domain.Position{existing}}
	o := New(runtimes, store, zerolog.Nop())

	candidate := allocation.Candidate{
		Signal: domain.Signal{Symbol: "AAPL", Direction: domain.DirectionLong, ConvictionTier: domain.TierS, TotalScore: 0.9},
		Price:  100,
	}
	input := ScenarioInput{Cycle: testCycle("scn_1"), State: testState(), Candidates: []allocation.Candidate{candidate}}

	allocs, err := o.executeOne(ctx, "scn_1", input)
	require.NoError(t, err)
	require.NotEmpty(t, allocs)

	require.Len(t, store.updated, 1)
	assert.Equal(t, domain.ExitReallocation, store.updated[0].ExitReason)
	assert.Equal(t, domain.PositionClosed, store.updated[0].Status)
	require.NotEmpty(t, store.inserted)
	assert.Equal(t, "AAPL", store.inserted[0].Symbol)
}

func TestExecuteOneUnknownScenarioErrors(t *testing.T) {
	ctx := context.Background()
	o := New(map[string]*Runtime{}, nil, zerolog.Nop())
	_, err := o.executeOne(ctx, "missing", ScenarioInput{})
	assert.Error(t, err)
}

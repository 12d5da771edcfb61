package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/config"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/philosophy"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/pkg/money"
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

type fakeCycleQueryStore struct {
	active map[string]domain.Cycle
	states map[string]domain.CycleState
}

func (s *fakeCycleQueryStore) ActiveCycle(ctx context.Context, scenarioID string) (domain.Cycle, bool, error) {
	c, ok := s.active[scenarioID]
	return c, ok, nil
}
func (s *fakeCycleQueryStore) CycleState(ctx context.Context, cycleID string) (domain.CycleState, error) {
	return s.states[cycleID], nil
}
func (s *fakeCycleQueryStore) History(ctx context.Context, scenarioID string) ([]domain.Cycle, error) {
	var out []domain.Cycle
	for _, c := range s.active {
		if c.ScenarioID == scenarioID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (s *fakeCycleQueryStore) Metrics(ctx context.Context, cycleID string) (domain.Cycle, error) {
	for _, c := range s.active {
		if c.CycleID == cycleID {
			return c, nil
		}
	}
	return domain.Cycle{}, nil
}

type fakePositionQueryStore struct {
	open map[string][]domain.Position
	all  map[string][]domain.Position
}

func (s *fakePositionQueryStore) OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return s.open[scenarioID], nil
}
func (s *fakePositionQueryStore) AllPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return s.all[scenarioID], nil
}

type fakeCyclePositionStore struct{ byCycle map[string][]domain.Position }

func (s *fakeCyclePositionStore) OpenPositions(ctx context.Context, cycleID string) ([]domain.Position, error) {
	var open []domain.Position
	for _, p := range s.byCycle[cycleID] {
		if p.Status == domain.PositionOpen {
			open = append(open, p)
		}
	}
	return open, nil
}
func (s *fakeCyclePositionStore) PositionCount(ctx context.Context, cycleID string) (int, error) {
	return len(s.byCycle[cycleID]), nil
}
func (s *fakeCyclePositionStore) Update(ctx context.Context, p domain.Position) error {
	return nil
}

type fakeAuditReader struct{ entries []domain.AuditLog }

func (a *fakeAuditReader) EntriesForEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditLog, error) {
	return a.entries, nil
}

type fakeInputBuilder struct{ inputs map[string]scenario.ScenarioInput }

func (b *fakeInputBuilder) BuildInputs(ctx context.Context) (map[string]scenario.ScenarioInput, error) {
	return b.inputs, nil
}

func newTestServer(t *testing.T) (*Server, *fakeCycleQueryStore, *fakePositionQueryStore) {
	t.Helper()
	quotes := marketdata.NewSimulatedQuoteSource(1)
	b := broker.NewPaperBroker(1, money.FromFloat(1_000_000), quotes, zerolog.Nop())
	om := orders.New(b, zerolog.Nop())
	cm := cycle.New(&fakeCycleStore{cycles: map[string]domain.Cycle{}}, &fakeCyclePositionStore{byCycle: map[string][]domain.Position{}}, om, nil, zerolog.Nop())

	rt := &scenario.Runtime{
		Scenario:   domain.Scenario{ScenarioID: "scn_1", Type: domain.ScenarioBalanced, InitialCapital: money.FromFloat(100_000)},
		Broker:     b,
		Cycle:      cm,
		Allocator:  allocation.NewCycleAllocator(),
		Philosophy: philosophy.NewEngine("scn_1", domain.DefaultPhilosophySettings()),
		Orders:     om,
	}
	runtimes := map[string]*scenario.Runtime{"scn_1": rt}

	positions := &fakePositionQueryStore{open: map[string][]domain.Position{}, all: map[string][]domain.Position{}}
	cycles := &fakeCycleQueryStore{active: map[string]domain.Cycle{}, states: map[string]domain.CycleState{}}
	orchestrator := scenario.New(runtimes, &orchestratorPositionAdapter{positions}, zerolog.Nop())

	srv := New(Config{
		Port:         0,
		Log:          zerolog.Nop(),
		Config:       &config.Config{CycleDurationDays: 90},
		Runtimes:     runtimes,
		Orchestrator: orchestrator,
		Inputs:       &fakeInputBuilder{inputs: map[string]scenario.ScenarioInput{}},
		Cycles:       cycles,
		Positions:    positions,
		Audit:        &fakeAuditReader{},
	})
	return srv, cycles, positions
}

// orchestratorPositionAdapter satisfies scenario.PositionStore on top of
// the simpler fakePositionQueryStore used across these tests.
type orchestratorPositionAdapter struct {
	store *fakePositionQueryStore
}

func (a *orchestratorPositionAdapter) OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error) {
	return a.store.OpenPositions(ctx, scenarioID)
}
func (a *orchestratorPositionAdapter) Insert(ctx context.Context, p domain.Position) error {
	a.store.open[p.ScenarioID] = append(a.store.open[p.ScenarioID], p)
	return nil
}
func (a *orchestratorPositionAdapter) Update(ctx context.Context, p domain.Position) error {
	positions := a.store.open[p.ScenarioID]
	for i, existing := range positions {
		if existing.PositionID == p.PositionID {
			positions[i] = p
			return nil
		}
	}
	return nil
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturnsHealthy(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestPhilosophyCurrentDefaultsToSoleRuntime(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/philosophy/current")
	assert.Equal(t, http.StatusOK, rec.Code)

	var settings domain.PhilosophySettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
}

func TestCycleCurrentReportsInactiveWhenNoneActive(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/cycle/current?scenario_id=scn_1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["active"])
}

func TestCycleStartCreatesCycleWhenNoneActive(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/cycle/start?scenario_id=scn_1")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCycleStartConflictsWhenAlreadyActive(t *testing.T) {
	srv, cycles, _ := newTestServer(t)
	cycles.active["scn_1"] = domain.Cycle{CycleID: "cyc_1", ScenarioID: "scn_1", Status: domain.CycleActive}

	rec := doRequest(t, srv, http.MethodPost, "/cycle/start?scenario_id=scn_1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCycleSettlePreconditionFailsBeforeEligibility(t *testing.T) {
	srv, cycles, _ := newTestServer(t)
	now := time.Now().UTC()
	cycles.active["scn_1"] = domain.Cycle{
		CycleID: "cyc_1", ScenarioID: "scn_1", Status: domain.CycleActive,
		StartDate: now, EndDate: now.AddDate(0, 0, 90), DurationDays: 90,
	}
	cycles.states["cyc_1"] = domain.CycleState{DrawdownGateStatus: domain.GateGreen}

	rec := doRequest(t, srv, http.MethodPost, "/cycle/settle?scenario_id=scn_1")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestScenarioPositionsReturnsOpenPositions(t *testing.T) {
	srv, _, positions := newTestServer(t)
	positions.open["scn_1"] = []domain.Position{{PositionID: "pos_1", ScenarioID: "scn_1", Symbol: "AAPL"}}

	rec := doRequest(t, srv, http.MethodGet, "/scenarios/positions?scenario_id=scn_1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body []domain.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

func TestAuditEntriesReturnsEntries(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.audit.(*fakeAuditReader).entries = []domain.AuditLog{{ID: 1, EntityType: "cycle", EntityID: "cyc_1"}}

	rec := doRequest(t, srv, http.MethodGet, "/audit/cycle/cyc_1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body []domain.AuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

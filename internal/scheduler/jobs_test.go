package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/signals/scoring"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScoringStore struct {
	pending []domain.Signal
	saved   []domain.Signal
}

func (s *fakeScoringStore) PendingSignals(ctx context.Context) ([]domain.Signal, error) {
	return s.pending, nil
}
func (s *fakeScoringStore) FilerHistory(ctx context.Context, filerID string) (scoring.FilerHistory, error) {
	return scoring.FilerHistory{TradesTracked: 10, WinRate: 0.7}, nil
}
func (s *fakeScoringStore) ConcurrentSignalCount(ctx context.Context, symbol string, direction domain.Direction) (int, error) {
	return 2, nil
}
func (s *fakeScoringStore) SaveScored(ctx context.Context, sig domain.Signal) error {
	s.saved = append(s.saved, sig)
	return nil
}

func TestScoreJobScoresAndSavesEveryPendingSignal(t *testing.T) {
	store := &fakeScoringStore{pending: []domain.Signal{
		{SignalID: "sig_1", Symbol: "AAPL", TransactionValue: money.FromFloat(50_000), FilingDate: time.Now().UTC()},
		{SignalID: "sig_2", Symbol: "MSFT", TransactionValue: money.FromFloat(10_000), FilingDate: time.Now().UTC()},
	}}
	job := &ScoreJob{Store: store}

	err := job.Run()
	require.NoError(t, err)
	assert.Len(t, store.saved, 2)
	for _, s := range store.saved {
		assert.NotZero(t, s.TotalScore)
	}
}

type fakeExpiringStore struct {
	expired []domain.Position
	updated []domain.Position
}

func (s *fakeExpiringStore) ExpiredPositions(ctx context.Context, asOf time.Time) ([]domain.Position, error) {
	return s.expired, nil
}
func (s *fakeExpiringStore) Update(ctx context.Context, p domain.Position) error {
	s.updated = append(s.updated, p)
	return nil
}

func TestExpiryCheckJobSkipsPositionsWithNoKnownScenario(t *testing.T) {
	store := &fakeExpiringStore{expired: []domain.Position{
		{PositionID: "pos_1", ScenarioID: "unknown_scenario", Symbol: "AAPL"},
	}}
	job := &ExpiryCheckJob{Store: store, OrdersByScenario: map[string]*orders.Manager{}}

	err := job.Run()
	assert.NoError(t, err, "a position with no registered order manager is skipped, not an error")
}

func TestExpiryCheckJobExitsKnownScenarioPosition(t *testing.T) {
	quotes := marketdata.NewSimulatedQuoteSource(1)
	b := broker.NewPaperBroker(1, money.FromFloat(1_000_000), quotes, zerolog.Nop())
	om := orders.New(b, zerolog.Nop())

	pos, err := om.Entry(context.Background(), "scn_1", "cyc_1", domain.SignalCandidate{Symbol: "AAPL"}, 10, domain.DirectionLong, domain.TierS, nil, time.Now(), time.Now())
	require.NoError(t, err)
	pos.ScenarioID = "scn_1"

	store := &fakeExpiringStore{expired: []domain.Position{pos}}
	job := &ExpiryCheckJob{Store: store, OrdersByScenario: map[string]*orders.Manager{"scn_1": om}}

	require.NoError(t, job.Run())
}

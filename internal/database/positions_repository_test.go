package database

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPosition(scenarioID, cycleID, symbol string) domain.Position {
	now := time.Now().UTC()
	return domain.Position{
		PositionID:     domain.NewID("pos"),
		ScenarioID:     scenarioID,
		CycleID:        cycleID,
		Symbol:         symbol,
		Direction:      domain.DirectionLong,
		Shares:         100,
		EntryDate:      now,
		EntryPrice:     money.FromFloat(50),
		EntryValue:     money.FromFloat(5000),
		ConvictionTier: domain.TierA,
		SourceSignals:  []string{"sig_1"},
		RoundStart:     now,
		RoundExpiry:    now.AddDate(0, 0, 90),
		Status:         domain.PositionOpen,
	}
}

func TestPositionRepositoryInsertAndQueryByCycle(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t).Conn(), zerolog.Nop())
	cyclePositions := NewCyclePositions(repo)

	p := testPosition("scn_1", "cyc_1", "AAPL")
	require.NoError(t, repo.Insert(ctx, p))

	open, err := cyclePositions.OpenPositions(ctx, "cyc_1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "AAPL", open[0].Symbol)
	assert.Equal(t, []string{"sig_1"}, open[0].SourceSignals)

	count, err := cyclePositions.PositionCount(ctx, "cyc_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPositionRepositoryUpdateClosesPosition(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t).Conn(), zerolog.Nop())
	cyclePositions := NewCyclePositions(repo)

	p := testPosition("scn_1", "cyc_1", "AAPL")
	require.NoError(t, repo.Insert(ctx, p))

	now := time.Now().UTC()
	exitPrice := money.FromFloat(55)
	realized := money.FromFloat(500)
	returnPct := 0.1
	p.Status = domain.PositionClosed
	p.ExitDate = &now
	p.ExitPrice = &exitPrice
	p.RealizedPnL = &realized
	p.ReturnPct = &returnPct
	p.ExitReason = domain.ExitExpiry
	require.NoError(t, repo.Update(ctx, p))

	open, err := cyclePositions.OpenPositions(ctx, "cyc_1")
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := NewScenarioPositions(repo).AllPositions(ctx, "scn_1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.PositionClosed, all[0].Status)
	require.NotNil(t, all[0].RealizedPnL)
	assert.True(t, all[0].RealizedPnL.Equal(realized))
}

func TestScenarioPositionsOpenBySymbolAndCountOpen(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t).Conn(), zerolog.Nop())
	scenarioPositions := NewScenarioPositions(repo)

	require.NoError(t, scenarioPositions.Insert(ctx, testPosition("scn_1", "cyc_1", "AAPL")))
	require.NoError(t, scenarioPositions.Insert(ctx, testPosition("scn_1", "cyc_1", "MSFT")))

	_, found, err := scenarioPositions.OpenPositionBySymbol(ctx, "scn_1", "AAPL")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = scenarioPositions.OpenPositionBySymbol(ctx, "scn_1", "GOOG")
	require.NoError(t, err)
	assert.False(t, found)

	count, err := scenarioPositions.CountOpen(ctx, "scn_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestScenarioPositionsExpiredPositions(t *testing.T) {
	ctx := context.Background()
	repo := NewPositionRepository(newTestDB(t).Conn(), zerolog.Nop())
	scenarioPositions := NewScenarioPositions(repo)

	expiring := testPosition("scn_1", "cyc_1", "AAPL")
	expiring.RoundExpiry = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Insert(ctx, expiring))

	notExpiring := testPosition("scn_1", "cyc_1", "MSFT")
	require.NoError(t, repo.Insert(ctx, notExpiring))

	expired, err := scenarioPositions.ExpiredPositions(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "AAPL", expired[0].Symbol)
}

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

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func testSignal(symbol string, direction domain.Direction, dedupSuffix string) domain.Signal {
	now := time.Now().UTC()
	return domain.Signal{
		SignalID:         domain.NewSignalID(domain.SourceInsiderForm4, symbol, now, "Acme Holdings"+dedupSuffix),
		Source:           domain.SourceInsiderForm4,
		Symbol:           symbol,
		Direction:        direction,
		FilerName:        "Acme Holdings" + dedupSuffix,
		FilerID:          "filer_1",
		TransactionDate:  now,
		FilingDate:       now,
		DiscoveredAt:     now,
		Shares:           1000,
		Price:            money.FromFloat(50),
		TransactionValue: money.FromFloat(50_000),
		Status:           domain.SignalPending,
	}
}

func TestSignalRepositoryInsertAndExists(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	s := testSignal("AAPL", domain.DirectionLong, "")
	require.NoError(t, repo.Insert(ctx, s))

	exists, err := repo.Exists(ctx, s.DedupKey())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "nonexistent|key|2026-01-01")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSignalRepositoryPendingAndActiveSignals(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	pending := testSignal("AAPL", domain.DirectionLong, "-1")
	require.NoError(t, repo.Insert(ctx, pending))

	active := testSignal("MSFT", domain.DirectionLong, "-2")
	active.Status = domain.SignalActive
	require.NoError(t, repo.Insert(ctx, active))

	pendingList, err := repo.PendingSignals(ctx)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	assert.Equal(t, "AAPL", pendingList[0].Symbol)

	activeList, err := repo.ActiveSignals(ctx)
	require.NoError(t, err)
	require.Len(t, activeList, 1)
	assert.Equal(t, "MSFT", activeList[0].Symbol)
}

func TestSignalRepositorySaveScoredPromotesOrRejects(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	s := testSignal("AAPL", domain.DirectionLong, "")
	require.NoError(t, repo.Insert(ctx, s))

	s.TotalScore = 0.9
	s.ConvictionTier = domain.TierS
	require.NoError(t, repo.SaveScored(ctx, s))

	pending, err := repo.PendingSignals(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	active, err := repo.ActiveSignals(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TierS, active[0].ConvictionTier)
}

func TestSignalRepositoryConcurrentSignalCount(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	a := testSignal("AAPL", domain.DirectionLong, "-1")
	a.Status = domain.SignalActive
	require.NoError(t, repo.Insert(ctx, a))

	b := testSignal("AAPL", domain.DirectionLong, "-2")
	b.Status = domain.SignalActive
	require.NoError(t, repo.Insert(ctx, b))

	count, err := repo.ConcurrentSignalCount(ctx, "AAPL", domain.DirectionLong)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.ConcurrentSignalCount(ctx, "AAPL", domain.DirectionShort)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSignalRepositoryMostRecentActive(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	_, found, err := repo.MostRecentActive(ctx, "AAPL", domain.DirectionLong)
	require.NoError(t, err)
	assert.False(t, found)

	s := testSignal("AAPL", domain.DirectionLong, "")
	s.Status = domain.SignalActive
	require.NoError(t, repo.Insert(ctx, s))

	found2, ok, err := repo.MostRecentActive(ctx, "AAPL", domain.DirectionLong)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.SignalID, found2.SignalID)
}

func TestSignalRepositoryIncrementPersistedCycles(t *testing.T) {
	ctx := context.Background()
	repo := NewSignalRepository(newTestDB(t).Conn(), zerolog.Nop())

	s := testSignal("AAPL", domain.DirectionLong, "")
	s.Status = domain.SignalActive
	require.NoError(t, repo.Insert(ctx, s))

	require.NoError(t, repo.IncrementPersistedCycles(ctx))
	require.NoError(t, repo.IncrementPersistedCycles(ctx))

	found, ok, err := repo.MostRecentActive(ctx, "AAPL", domain.DirectionLong)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, found.PersistedCycles)
}

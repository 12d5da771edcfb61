package allocation

import (
	"testing"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsNothingInForceClose(t *testing.T) {
	a := NewCycleAllocator()
	out := a.Allocate(Request{Phase: domain.PhaseForceClose, AllocationPower: 1.0})
	assert.Empty(t, out)
}

func TestAllocateReturnsNothingOnRedOrNuclearGate(t *testing.T) {
	a := NewCycleAllocator()
	for _, gate := range []domain.DrawdownGate{domain.GateRed, domain.GateNuclear} {
		out := a.Allocate(Request{Phase: domain.PhaseActive, DrawdownGate: gate, AllocationPower: 1.0})
		assert.Empty(t, out)
	}
}

func TestAllocateReturnsNothingWhenAtPhaseCap(t *testing.T) {
	a := NewCycleAllocator()
	out := a.Allocate(Request{Phase: domain.PhaseLoad, OpenPositions: 12, AllocationPower: 1.0})
	assert.Empty(t, out)
}

func TestAllocateProducesAtLeastOneShare(t *testing.T) {
	a := NewCycleAllocator()
	candidates := []Candidate{
		{Signal: domain.Signal{Symbol: "AAPL", Direction: domain.DirectionLong, TotalScore: 0.9, SignalID: "sig_1"}, Price: 150},
	}
	out := a.Allocate(Request{
		Phase:           domain.PhaseActive,
		DrawdownGate:    domain.GateGreen,
		OpenPositions:   0,
		PortfolioValue:  1_000_000,
		InvestedValue:   0,
		Candidates:      candidates,
		AllocationPower: 1.0,
	})
	require.Len(t, out, 1)
	assert.GreaterOrEqual(t, out[0].Shares, int64(1))
}

func TestAllocatePabraiClusterMultiplierAppliesAfterPhaseSlotSizing(t *testing.T) {
	a := NewCycleAllocator()
	candidates := []Candidate{
		{Signal: domain.Signal{Symbol: "TSLA", Direction: domain.DirectionLong, TotalScore: 0.9, SignalID: "sig_1"}, Price: 100},
	}
	pabrai := domain.PabraiSettings{Enabled: true, ClusterThreshold: 3, PositionMultiplier: 2.0}

	base := a.Allocate(Request{
		Phase: domain.PhaseActive, DrawdownGate: domain.GateGreen, OpenPositions: 0,
		PortfolioValue: 1_000_000, Candidates: candidates, AllocationPower: 1.0,
		PabraiSettings: domain.PabraiSettings{},
	})
	clustered := a.Allocate(Request{
		Phase: domain.PhaseActive, DrawdownGate: domain.GateGreen, OpenPositions: 0,
		PortfolioValue: 1_000_000, Candidates: candidates, AllocationPower: 1.0,
		ClusterCounts:  map[string]int{"TSLA|LONG": 3},
		PabraiSettings: pabrai,
	})

	require.Len(t, base, 1)
	require.Len(t, clustered, 1)
	assert.Greater(t, clustered[0].Shares, base[0].Shares)
}

func TestSizerRejectsWithoutATR(t *testing.T) {
	v := Size(SizerInputs{Price: 100, AvailableCapital: 10000, PhaseMultiplier: 1.0, SlotValue: 2000})
	assert.Equal(t, 0.0, v)
}

func TestSizerClampsToBounds(t *testing.T) {
	atr := 1.0
	v := Size(SizerInputs{Price: 100, ATR: &atr, AvailableCapital: 1_000_000, PhaseMultiplier: 1.0, SlotValue: 100000})
	assert.LessOrEqual(t, v, 5000.0)
	assert.GreaterOrEqual(t, v, 500.0)
}

func TestSizerRejectsWideSpreadToATR(t *testing.T) {
	atr := 1.0
	spread := 0.5
	v := Size(SizerInputs{Price: 100, ATR: &atr, Spread: &spread, AvailableCapital: 10000, PhaseMultiplier: 1.0, SlotValue: 2000})
	assert.Equal(t, 0.0, v)
}

package risk

import (
	"testing"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGateBoundaries(t *testing.T) {
	cases := []struct {
		current, max float64
		expected     domain.DrawdownGate
	}{
		{0.01, 0.02, domain.GateGreen},
		{0.05, 0.10, domain.GateYellow},
		{0.049, 0.00, domain.GateGreen},
		{0.10, 0.15, domain.GateRed},
		{0.15, 0.20, domain.GateNuclear},
		{0.15, 0.19, domain.GateNuclear},
		{0.16, 0.05, domain.GateNuclear},
		{0.00, 0.20, domain.GateNuclear},
		{0.02, 0.11, domain.GateYellow},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, Gate(c.current, c.max))
	}
}

func TestStopPriceNilWithoutATR(t *testing.T) {
	assert.Nil(t, StopPrice(100, nil, domain.DirectionLong, domain.PhaseActive))
}

func TestStopPriceLongSubtractsShortAdds(t *testing.T) {
	atr := 2.0
	longStop := StopPrice(100, &atr, domain.DirectionLong, domain.PhaseLoad)
	shortStop := StopPrice(100, &atr, domain.DirectionShort, domain.PhaseLoad)

	require := 100 - 2.0*2.0
	assert.InDelta(t, require, *longStop, 0.0001)
	assert.InDelta(t, 100+2.0*2.0, *shortStop, 0.0001)
}

func TestCashReserveFloorByPhase(t *testing.T) {
	assert.Equal(t, 0.30, CashReserveFloor(domain.PhaseLoad))
	assert.Equal(t, 0.20, CashReserveFloor(domain.PhaseActive))
	assert.Equal(t, 0.60, CashReserveFloor(domain.PhaseScaleOut))
	assert.Equal(t, 1.00, CashReserveFloor(domain.PhaseForceClose))
}

func TestExceedsPositionRiskLimit(t *testing.T) {
	assert.False(t, ExceedsPositionRiskLimit(-1900, 10000, 100000))
	assert.True(t, ExceedsPositionRiskLimit(-2100, 10000, 100000))
}

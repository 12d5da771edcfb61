package allocation

import (
	"math"
	"sort"

	"github.com/aristath/signalcycle/internal/domain"
)

// Candidate is a scored, ACTIVE signal eligible for allocation, not yet
// bound to a cycle. A candidate's symbol may already have an open
// position in this scenario — the caller reallocates (closes the
// existing position, then opens the fresh one) rather than filtering
// it out (§4.9).
type Candidate struct {
	Signal domain.Signal
	Price  float64
	ATR    *float64
	Spread *float64
}

// Allocation is one proposed entry for a candidate symbol.
type Allocation struct {
	Symbol    string
	Direction domain.Direction
	Shares    int64
	SlotValue float64
	SourceIDs []string
}

// Request bundles everything the allocator needs for one invocation
// (one scenario, one cycle).
type Request struct {
	Phase           domain.Phase
	DrawdownGate    domain.DrawdownGate
	OpenPositions   int
	PortfolioValue  float64
	InvestedValue   float64
	Candidates      []Candidate
	ClusterCounts   map[string]int // (symbol|direction) -> concurrent signal count
	AllocationPower float64
	PabraiSettings  domain.PabraiSettings
}

// CycleAllocator implements the allocation algorithm of §4.4 steps 1-9,
// independent of the philosophy engine's own state (it only consumes the
// allocation_power scalar and Pabrai parameters as inputs).
type CycleAllocator struct{}

// NewCycleAllocator constructs a CycleAllocator. It is stateless.
func NewCycleAllocator() *CycleAllocator { return &CycleAllocator{} }

// Allocate computes the proposed entries for one scenario/cycle invocation.
func (a *CycleAllocator) Allocate(req Request) []Allocation {
	if req.Phase == domain.PhaseForceClose {
		return nil
	}
	if req.DrawdownGate == domain.GateRed || req.DrawdownGate == domain.GateNuclear {
		return nil
	}

	maxPositions := PhaseMaxPositions(req.Phase)
	remainingSlots := maxPositions - req.OpenPositions
	if remainingSlots <= 0 {
		return nil
	}

	candidates := make([]Candidate, len(req.Candidates))
	copy(candidates, req.Candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Signal.TotalScore > candidates[j].Signal.TotalScore
	})
	if len(candidates) > remainingSlots {
		candidates = candidates[:remainingSlots]
	}

	allocPct := PhaseAllocationPct(req.Phase)
	availableByPct := allocPct*req.PortfolioValue - req.InvestedValue
	availableBySlots := float64(remainingSlots) * targetPositionSize(req.PortfolioValue, maxPositions)
	availableCapital := math.Min(availableByPct, availableBySlots)
	if availableCapital <= 0 {
		return nil
	}

	slotFactor := PhaseSlotFactor(req.Phase)
	perSlot := availableCapital / float64(remainingSlots)
	perSlot = clamp(perSlot, minPositionValue, maxPositionValue) * slotFactor

	allocations := make([]Allocation, 0, len(candidates))
	for _, c := range candidates {
		slotValue := perSlot

		key := c.Signal.Symbol + "|" + string(c.Signal.Direction)
		if req.PabraiSettings.Enabled && req.ClusterCounts[key] >= req.PabraiSettings.ClusterThreshold {
			slotValue = slotValue*req.PabraiSettings.PositionMultiplier + req.PabraiSettings.AllocationBonus
		}

		slotValue *= req.AllocationPower

		if c.Price <= 0 {
			continue
		}
		shares := int64(math.Floor(slotValue / c.Price))
		if shares < 1 {
			shares = 1
		}

		allocations = append(allocations, Allocation{
			Symbol:    c.Signal.Symbol,
			Direction: c.Signal.Direction,
			Shares:    shares,
			SlotValue: slotValue,
			SourceIDs: []string{c.Signal.SignalID},
		})
	}

	return allocations
}

// targetPositionSize is a simple per-phase-max fraction of the portfolio,
// used as the slot-count-driven half of the available-capital formula.
func targetPositionSize(portfolioValue float64, maxPositions int) float64 {
	if maxPositions == 0 {
		return 0
	}
	return portfolioValue / float64(maxPositions)
}

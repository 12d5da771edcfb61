// Package allocation implements the cycle-aware allocator (C8) and the
// position sizer (C7) of §4.4.
package allocation

import "github.com/aristath/signalcycle/internal/domain"

// PhaseMaxPositions is the open-position cap by phase.
func PhaseMaxPositions(phase domain.Phase) int {
	switch phase {
	case domain.PhaseLoad:
		return 12
	case domain.PhaseActive:
		return 16
	case domain.PhaseScaleOut:
		return 8
	default: // FORCE_CLOSE
		return 0
	}
}

// PhaseAllocationPct is the fraction of portfolio value allowed invested
// by phase.
func PhaseAllocationPct(phase domain.Phase) float64 {
	switch phase {
	case domain.PhaseLoad:
		return 0.70
	case domain.PhaseActive:
		return 0.80
	case domain.PhaseScaleOut:
		return 0.40
	default:
		return 0.00
	}
}

// PhaseSlotFactor scales the per-slot target dollar value by phase.
func PhaseSlotFactor(phase domain.Phase) float64 {
	switch phase {
	case domain.PhaseLoad:
		return 1.5
	case domain.PhaseActive:
		return 1.0
	case domain.PhaseScaleOut:
		return 0.5
	default:
		return 0
	}
}

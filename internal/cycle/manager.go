// Package cycle implements the cycle manager (C5): creating cycles,
// advancing them through phases, detecting completion, and settling a
// completed cycle into the next one's starting capital.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// MinValidityDays is the minimum cycle_day for a settlement to count as valid.
	MinValidityDays = 30
	// MinPositionsForValidity is the minimum lifetime position count for validity.
	MinPositionsForValidity = 5
	// ForceCloseDay is the cycle day at which FORCE_CLOSE phase begins for a
	// 90-day cycle; completion (not just phase entry) follows at day 76+ only
	// when paired with another trigger, per §4.5.
	ForceCloseDay = 76

	// ProfitWithdrawalPct is the fraction of a profitable cycle's total P&L
	// withdrawn at settlement.
	ProfitWithdrawalPct = 0.50
	// CapitalResetPct is the fraction of original capital that seeds the
	// next cycle.
	CapitalResetPct = 0.80
)

// CompletionReason names why a cycle is eligible to settle.
type CompletionReason string

const (
	CompletionNone       CompletionReason = ""
	CompletionDuration   CompletionReason = "DURATION"
	CompletionEmergency  CompletionReason = "EMERGENCY"
	CompletionAllClosed  CompletionReason = "ALL_CLOSED"
)

// PositionStore is the capability the cycle manager needs from position
// storage: list the open and total positions belonging to one cycle.
type PositionStore interface {
	OpenPositions(ctx context.Context, cycleID string) ([]domain.Position, error)
	PositionCount(ctx context.Context, cycleID string) (int, error)
	Update(ctx context.Context, p domain.Position) error
}

// CycleStore persists cycle rows.
type CycleStore interface {
	Insert(ctx context.Context, c domain.Cycle) error
	Update(ctx context.Context, c domain.Cycle) error
	Get(ctx context.Context, cycleID string) (domain.Cycle, error)
}

// Auditor is the narrow slice of internal/audit.Log the manager needs.
type Auditor interface {
	RecordNow(entityType, entityID, eventType, actor, action, reason string, before, after interface{}) (*domain.AuditLog, error)
}

// Manager owns the cycle state machine for one scenario.
type Manager struct {
	cycles    CycleStore
	positions PositionStore
	orders    *orders.Manager
	audit     Auditor
	log       zerolog.Logger
}

// New creates a cycle manager bound to one scenario's stores and order manager.
func New(cycles CycleStore, positions PositionStore, ordersMgr *orders.Manager, audit Auditor, log zerolog.Logger) *Manager {
	return &Manager{
		cycles:    cycles,
		positions: positions,
		orders:    ordersMgr,
		audit:     audit,
		log:       log.With().Str("component", "cycle").Logger(),
	}
}

// Create starts a new cycle for a scenario with the given duration and
// starting capital, deriving the position-sizing envelope from phase 1.
func (m *Manager) Create(ctx context.Context, scenarioID string, durationDays int, startingCapital money.Decimal) (domain.Cycle, error) {
	if durationDays <= 0 {
		durationDays = 90
	}
	now := time.Now().UTC()
	c := domain.Cycle{
		CycleID:            domain.NewID("cyc"),
		ScenarioID:         scenarioID,
		StartDate:          now,
		EndDate:            now.AddDate(0, 0, durationDays),
		DurationDays:       durationDays,
		Status:             domain.CycleActive,
		MaxPositions:       16,
		TargetPositionSize: startingCapital.Mul(decimal.NewFromFloat(0.05)),
		MinPositionSize:    money.FromFloat(500.0),
		MaxPositionSize:    money.FromFloat(5000.0),
		StartingCapital:    startingCapital,
	}
	if err := m.cycles.Insert(ctx, c); err != nil {
		return domain.Cycle{}, fmt.Errorf("failed to insert cycle: %w", err)
	}
	if m.audit != nil {
		if _, err := m.audit.RecordNow("cycle", c.CycleID, "CYCLE_CREATED", "cycle_manager", "create", "new cycle started", nil, c); err != nil {
			m.log.Warn().Err(err).Str("cycle_id", c.CycleID).Msg("failed to audit cycle creation")
		}
	}
	return c, nil
}

// Phase returns the current phase for a cycle at the given time.
func Phase(c domain.Cycle, now time.Time) domain.Phase {
	return domain.PhaseForDay(c.CurrentDay(now), c.DurationDays)
}

// CheckCompletion evaluates the daily completion predicates in priority
// order: EMERGENCY (NUCLEAR gate) first, then ALL_CLOSED, then DURATION.
// Entering FORCE_CLOSE phase at day 76+ is a phase transition, not by
// itself a completion trigger.
func (m *Manager) CheckCompletion(ctx context.Context, c domain.Cycle, now time.Time, gate domain.DrawdownGate) (CompletionReason, error) {
	if gate == domain.GateNuclear {
		return CompletionEmergency, nil
	}

	open, err := m.positions.OpenPositions(ctx, c.CycleID)
	if err != nil {
		return CompletionNone, fmt.Errorf("failed to list open positions: %w", err)
	}
	total, err := m.positions.PositionCount(ctx, c.CycleID)
	if err != nil {
		return CompletionNone, fmt.Errorf("failed to count positions: %w", err)
	}
	if total > 0 && len(open) == 0 {
		return CompletionAllClosed, nil
	}

	if c.CurrentDay(now) >= c.DurationDays {
		return CompletionDuration, nil
	}
	return CompletionNone, nil
}

// IsValid reports whether a cycle meets the validity gate for settlement:
// at least MinValidityDays elapsed, at least MinPositionsForValidity
// positions ever opened, and the cycle was ACTIVE (not already settled).
func (m *Manager) IsValid(ctx context.Context, c domain.Cycle, now time.Time) (bool, error) {
	if c.Status != domain.CycleActive {
		return false, nil
	}
	if c.CurrentDay(now) < MinValidityDays {
		return false, nil
	}
	total, err := m.positions.PositionCount(ctx, c.CycleID)
	if err != nil {
		return false, fmt.Errorf("failed to count positions: %w", err)
	}
	return total >= MinPositionsForValidity, nil
}

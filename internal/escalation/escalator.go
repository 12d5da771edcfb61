// Package escalation implements the review-cycle escalator (C10):
// hysteresis-confirmed tier escalations that close and reopen a position
// at its existing entry price for P&L-attribution continuity.
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/rs/zerolog"
)

// minPersistedCycles is the minimum confirmation count a signal must carry
// before its tier delta is trusted over a new position's existing tier.
const minPersistedCycles = 2

// minTierDelta is the minimum upward tier-value jump that qualifies.
const minTierDelta = 2

// SignalStore is the capability the escalator needs to find and persist
// signal state.
type SignalStore interface {
	IncrementPersistedCycles(ctx context.Context) error
	MostRecentActive(ctx context.Context, symbol string, direction domain.Direction) (domain.Signal, bool, error)
}

// PositionStore is the capability the escalator needs over open positions.
type PositionStore interface {
	OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error)
	Insert(ctx context.Context, p domain.Position) error
	Update(ctx context.Context, p domain.Position) error
}

// Auditor is the narrow audit capability used here.
type Auditor interface {
	RecordNow(entityType, entityID, eventType, actor, action, reason string, before, after interface{}) (*domain.AuditLog, error)
}

// Escalator confirms and executes tier-escalation close-and-reopen pairs
// for one scenario.
type Escalator struct {
	signals   SignalStore
	positions PositionStore
	orders    *orders.Manager
	audit     Auditor
	log       zerolog.Logger
}

// New creates an escalator bound to one scenario's stores and order manager.
func New(signals SignalStore, positions PositionStore, ordersMgr *orders.Manager, audit Auditor, log zerolog.Logger) *Escalator {
	return &Escalator{
		signals:   signals,
		positions: positions,
		orders:    ordersMgr,
		audit:     audit,
		log:       log.With().Str("component", "escalation").Logger(),
	}
}

// Result reports the outcome of one Run pass.
type Result struct {
	Confirmed int
	Skipped   int
	Failed    int
}

// Run executes the daily algorithm of §4.8: increment every active
// signal's persisted_cycles counter, then for each open position look for
// a confirmed upward-tier signal match and, if found, close the old
// position and open a replacement at the same entry price. A failed exit
// is skipped for this pass without resetting the signal's persistence
// counter, so it is retried next day per the spec's stated failure policy.
func (e *Escalator) Run(ctx context.Context, scenarioID string) (Result, error) {
	var result Result

	if err := e.signals.IncrementPersistedCycles(ctx); err != nil {
		return result, fmt.Errorf("failed to increment persisted cycles: %w", err)
	}

	open, err := e.positions.OpenPositions(ctx, scenarioID)
	if err != nil {
		return result, fmt.Errorf("failed to list open positions: %w", err)
	}

	for _, pos := range open {
		signal, found, err := e.signals.MostRecentActive(ctx, pos.Symbol, pos.Direction)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to look up matching signal")
			result.Skipped++
			continue
		}
		if !found {
			continue
		}

		delta := signal.ConvictionTier.Value() - pos.ConvictionTier.Value()
		if delta < minTierDelta || signal.PersistedCycles < minPersistedCycles {
			continue
		}

		if err := e.confirm(ctx, pos, signal); err != nil {
			e.log.Warn().Err(err).Str("position_id", pos.PositionID).Msg("escalation exit failed, retrying next cycle")
			result.Failed++
			continue
		}
		result.Confirmed++
	}

	return result, nil
}

// confirm closes the old position tagged TIER_ESCALATION_CONFIRMED and
// opens a replacement at the same entry price, carrying forward
// round_start/round_expiry/cycle_id so P&L attribution is continuous
// across the close-and-reopen pair.
func (e *Escalator) confirm(ctx context.Context, pos domain.Position, signal domain.Signal) error {
	closed, err := e.orders.Exit(ctx, pos, domain.ExitEscalation)
	if err != nil {
		return err
	}
	if err := e.positions.Update(ctx, closed); err != nil {
		return fmt.Errorf("failed to persist escalated position close: %w", err)
	}

	replacement := domain.Position{
		PositionID:     domain.NewID("pos"),
		ScenarioID:     pos.ScenarioID,
		CycleID:        pos.CycleID,
		Symbol:         pos.Symbol,
		Direction:      pos.Direction,
		Shares:         pos.Shares,
		EntryDate:      time.Now().UTC(),
		EntryPrice:     pos.EntryPrice,
		EntryValue:     pos.EntryValue,
		ConvictionTier: signal.ConvictionTier,
		SourceSignals:  append(append([]string{}, pos.SourceSignals...), signal.SignalID),
		RoundStart:     pos.RoundStart,
		RoundExpiry:    pos.RoundExpiry,
		Status:         domain.PositionOpen,
	}
	if err := e.positions.Insert(ctx, replacement); err != nil {
		return fmt.Errorf("failed to insert escalated replacement position: %w", err)
	}

	if e.audit != nil {
		if _, err := e.audit.RecordNow("position", pos.PositionID, "TIER_ESCALATION_CONFIRMED", "escalator", "close_and_reopen", "confirmed tier escalation", closed, replacement); err != nil {
			e.log.Warn().Err(err).Msg("failed to audit tier escalation")
		}
	}

	return nil
}

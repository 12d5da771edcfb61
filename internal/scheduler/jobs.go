package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/escalation"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/internal/signals"
	"github.com/aristath/signalcycle/internal/signals/scoring"
	"github.com/aristath/signalcycle/pkg/money"
)

// IngestJob drives the signal pipeline (fetch, dedup, filter, persist) —
// §4.10's 06:00 trigger.
type IngestJob struct {
	Pipeline *signals.Pipeline
}

func (j *IngestJob) Name() string { return "ingest" }
func (j *IngestJob) Run() error {
	_, err := j.Pipeline.Run(context.Background())
	return err
}

// ScoringStore is the capability the scoring job needs: the pending
// signals awaiting a score, per-filer history for the competence factor,
// and the concurrent-signal count for the consensus factor.
type ScoringStore interface {
	PendingSignals(ctx context.Context) ([]domain.Signal, error)
	FilerHistory(ctx context.Context, filerID string) (scoring.FilerHistory, error)
	ConcurrentSignalCount(ctx context.Context, symbol string, direction domain.Direction) (int, error)
	SaveScored(ctx context.Context, s domain.Signal) error
}

// ScoreJob scores every pending signal — §4.10's 07:00 trigger.
type ScoreJob struct {
	Store ScoringStore
}

func (j *ScoreJob) Name() string { return "score" }
func (j *ScoreJob) Run() error {
	ctx := context.Background()
	pending, err := j.Store.PendingSignals(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending signals: %w", err)
	}

	now := time.Now().UTC()
	for _, s := range pending {
		history, err := j.Store.FilerHistory(ctx, s.FilerID)
		if err != nil {
			history = scoring.FilerHistory{}
		}
		concurrent, err := j.Store.ConcurrentSignalCount(ctx, s.Symbol, s.Direction)
		if err != nil {
			concurrent = 1
		}

		scored := scoring.Score(s, scoring.Inputs{ConcurrentSignals: concurrent, Filer: history, Now: now})
		if err := j.Store.SaveScored(ctx, scored); err != nil {
			return fmt.Errorf("failed to save scored signal %s: %w", scored.SignalID, err)
		}
	}
	return nil
}

// AllocationInputBuilder resolves each scenario's current cycle, cycle
// state, and ranked candidate signals ahead of one allocation pass.
type AllocationInputBuilder interface {
	BuildInputs(ctx context.Context) (map[string]scenario.ScenarioInput, error)
}

// MarketOpenChecker reports whether a named market is currently open —
// the allocation job's optional gate against closed-market hours.
type MarketOpenChecker interface {
	IsOpen(code string) (bool, error)
}

// AllocateJob runs one allocation pass across every scenario — §4.10's
// 08:00/08:30 triggers (allocation decisions and order submission are one
// step here since the orchestrator itself submits entry orders). Markets
// is optional: when set alongside MarketCode, the job skips the pass
// entirely while that market reports closed, rather than letting the
// paper broker fill orders around the clock. A lookup error (cache not
// yet populated, stream down) fails open so allocation is never blocked
// on the status feed being unavailable.
type AllocateJob struct {
	Inputs       AllocationInputBuilder
	Orchestrator *scenario.Orchestrator
	Markets      MarketOpenChecker
	MarketCode   string
}

func (j *AllocateJob) Name() string { return "allocate" }
func (j *AllocateJob) Run() error {
	ctx := context.Background()
	if j.Markets != nil && j.MarketCode != "" {
		if open, err := j.Markets.IsOpen(j.MarketCode); err == nil && !open {
			return nil
		}
	}
	inputs, err := j.Inputs.BuildInputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to build allocation inputs: %w", err)
	}
	results := j.Orchestrator.ExecuteAll(ctx, inputs)
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("scenario %s allocation failed: %w", r.ScenarioID, r.Err)
		}
	}
	return nil
}

// ReviewCycleJob runs the tier-escalation hysteresis check across every
// scenario — §4.10's 09:00 trigger.
type ReviewCycleJob struct {
	Escalators map[string]*escalation.Escalator
}

func (j *ReviewCycleJob) Name() string { return "review_cycle" }
func (j *ReviewCycleJob) Run() error {
	ctx := context.Background()
	for scenarioID, e := range j.Escalators {
		if _, err := e.Run(ctx, scenarioID); err != nil {
			return fmt.Errorf("scenario %s escalation review failed: %w", scenarioID, err)
		}
	}
	return nil
}

// ExpiringPositionStore finds positions whose round_expiry has passed and
// persists the exit fill back to storage.
type ExpiringPositionStore interface {
	ExpiredPositions(ctx context.Context, asOf time.Time) ([]domain.Position, error)
	Update(ctx context.Context, p domain.Position) error
}

// ExpiryCheckJob closes positions past their round_expiry — §4.10's
// hourly top-of-hour trigger.
type ExpiryCheckJob struct {
	Store            ExpiringPositionStore
	OrdersByScenario map[string]*orders.Manager
}

func (j *ExpiryCheckJob) Name() string { return "expiry_check" }
func (j *ExpiryCheckJob) Run() error {
	ctx := context.Background()
	expired, err := j.Store.ExpiredPositions(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list expired positions: %w", err)
	}
	for _, pos := range expired {
		om, ok := j.OrdersByScenario[pos.ScenarioID]
		if !ok {
			continue
		}
		closed, err := om.Exit(ctx, pos, domain.ExitExpiry)
		if err != nil {
			return fmt.Errorf("failed to exit expired position %s: %w", pos.PositionID, err)
		}
		if err := j.Store.Update(ctx, closed); err != nil {
			return fmt.Errorf("failed to persist expired position close %s: %w", pos.PositionID, err)
		}
	}
	return nil
}

// CycleCompletionChecker resolves whether each scenario's active cycle is
// due for settlement and, if so, settles it.
type CycleCompletionChecker interface {
	CheckAndSettleAll(ctx context.Context) error
}

// ReconciliationJob runs end-of-day cycle-completion checks and
// settlement — §4.10's 22:00 trigger.
type ReconciliationJob struct {
	Checker CycleCompletionChecker
}

func (j *ReconciliationJob) Name() string { return "eod_reconciliation" }
func (j *ReconciliationJob) Run() error {
	return j.Checker.CheckAndSettleAll(context.Background())
}

// UnrealizedMarker recomputes one scenario's unrealized P&L and equity.
type UnrealizedMarker interface {
	MarkUnrealized(ctx context.Context, scenarioID string, equity money.Decimal) error
}

// MarkToMarketJob refreshes each scenario's unrealized P&L from its
// broker's account value — §4.10's every-5-minutes trigger.
type MarkToMarketJob struct {
	Brokers map[string]AccountValuer
	Marker  UnrealizedMarker
}

// AccountValuer is the one broker capability this job needs.
type AccountValuer interface {
	GetAccountValue(ctx context.Context) (money.Decimal, error)
}

func (j *MarkToMarketJob) Name() string { return "mark_to_market" }
func (j *MarkToMarketJob) Run() error {
	ctx := context.Background()
	for scenarioID, b := range j.Brokers {
		equity, err := b.GetAccountValue(ctx)
		if err != nil {
			return fmt.Errorf("scenario %s: failed to get account value: %w", scenarioID, err)
		}
		if err := j.Marker.MarkUnrealized(ctx, scenarioID, equity); err != nil {
			return fmt.Errorf("scenario %s: failed to mark unrealized: %w", scenarioID, err)
		}
	}
	return nil
}

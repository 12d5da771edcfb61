package domain

import (
	"time"

	"github.com/aristath/signalcycle/pkg/money"
)

// Signal is an observed external event suggesting a directional bet.
type Signal struct {
	SignalID         string         `json:"signal_id"`
	Source           SignalSource   `json:"source"`
	Symbol           string         `json:"symbol"`
	Direction        Direction      `json:"direction"`
	FilerName        string         `json:"filer_name"`
	FilerID          string         `json:"filer_id,omitempty"`
	TransactionDate  time.Time      `json:"transaction_date"`
	FilingDate       time.Time      `json:"filing_date"`
	DiscoveredAt     time.Time      `json:"discovered_at"`
	Shares           float64        `json:"shares"`
	Price            money.Decimal  `json:"price"`
	TransactionValue money.Decimal  `json:"transaction_value"`
	Recency          float64        `json:"recency"`
	Size             float64        `json:"size"`
	Competence       float64        `json:"competence"`
	Consensus        float64        `json:"consensus"`
	Regime           float64        `json:"regime"`
	TotalScore       float64        `json:"total_score"`
	ConvictionTier   ConvictionTier `json:"conviction_tier"`
	Status           SignalStatus   `json:"status"`
	PersistedCycles  int            `json:"persisted_cycles"`
	CycleID          string         `json:"cycle_id,omitempty"`
}

// DedupKey is the deduplication identity of a signal: (symbol, source, transaction_date).
func (s *Signal) DedupKey() string {
	return s.Symbol + "|" + string(s.Source) + "|" + s.TransactionDate.Format("2006-01-02")
}

// Cycle is a bounded trading window.
type Cycle struct {
	CycleID            string        `json:"cycle_id"`
	ScenarioID         string        `json:"scenario_id"`
	StartDate          time.Time     `json:"start_date"`
	EndDate            time.Time     `json:"end_date"`
	DurationDays       int           `json:"duration_days"`
	Status             CycleStatus   `json:"status"`
	MaxPositions       int           `json:"max_positions"`
	TargetPositionSize money.Decimal `json:"target_position_size"`
	MaxPositionSize    money.Decimal `json:"max_position_size"`
	MinPositionSize    money.Decimal `json:"min_position_size"`
	StartingCapital    money.Decimal `json:"starting_capital"`

	TotalInvested   money.Decimal `json:"total_invested"`
	TotalPnL        money.Decimal `json:"total_pnl"`
	TotalReturn     float64       `json:"total_return"`
	WinRate         float64       `json:"win_rate"`
	AvgWinner       money.Decimal `json:"avg_winner"`
	AvgLoser        money.Decimal `json:"avg_loser"`
	PositionsOpened int           `json:"positions_opened"`
	PositionsClosed int           `json:"positions_closed"`
}

// CurrentDay returns the 1-indexed cycle day for the given "now".
func (c *Cycle) CurrentDay(now time.Time) int {
	days := int(now.Sub(c.StartDate).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// PhaseForDay maps a cycle day to its phase, scaled to the cycle's
// configured duration so a 30-day deployment profile still resolves a
// sensible LOAD/ACTIVE/SCALE_OUT/FORCE_CLOSE progression (see
// SPEC_FULL.md's resolution of the 30-vs-90-day open question: 90 is
// canonical and uses the literal day ranges; any other configured
// duration scales them proportionally).
func PhaseForDay(day, durationDays int) Phase {
	if durationDays <= 0 {
		durationDays = 90
	}
	if durationDays == 90 {
		switch {
		case day <= 7:
			return PhaseLoad
		case day <= 60:
			return PhaseActive
		case day <= 75:
			return PhaseScaleOut
		default:
			return PhaseForceClose
		}
	}
	loadEnd := scaleDay(7, durationDays)
	activeEnd := scaleDay(60, durationDays)
	scaleOutEnd := scaleDay(75, durationDays)
	switch {
	case day <= loadEnd:
		return PhaseLoad
	case day <= activeEnd:
		return PhaseActive
	case day <= scaleOutEnd:
		return PhaseScaleOut
	default:
		return PhaseForceClose
	}
}

func scaleDay(canonicalDay, durationDays int) int {
	scaled := canonicalDay * durationDays / 90
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// CycleState is a per-day snapshot of a cycle's capital, risk, and performance.
type CycleState struct {
	CycleID    string `json:"cycle_id"`
	CycleDay   int    `json:"cycle_day"`
	Phase      Phase  `json:"phase"`

	StartingCapital money.Decimal `json:"starting_capital"`
	CurrentEquity   money.Decimal `json:"current_equity"`
	RealizedPnL     money.Decimal `json:"realized_pnl"`
	UnrealizedPnL   money.Decimal `json:"unrealized_pnl"`

	HighWaterMark   money.Decimal `json:"high_water_mark"`
	CurrentDrawdown float64       `json:"current_drawdown"`
	MaxDrawdown     float64       `json:"max_drawdown"`

	PositionsOpened       int `json:"positions_opened"`
	PositionsClosed       int `json:"positions_closed"`
	PositionsForcedClosed int `json:"positions_forced_closed"`

	WinRate      float64  `json:"win_rate"`
	AvgWinner    money.Decimal `json:"avg_winner"`
	AvgLoser     money.Decimal `json:"avg_loser"`
	Expectancy   float64  `json:"expectancy"`
	SharpeRatio  *float64 `json:"sharpe_ratio,omitempty"`

	DrawdownGateStatus DrawdownGate  `json:"drawdown_gate_status"`
	CashReserveTarget  money.Decimal `json:"cash_reserve_target"`
	CashReserveActual  money.Decimal `json:"cash_reserve_actual"`
	IsValidCycle       bool          `json:"is_valid_cycle"`
}

// Position is an open or historical holding.
type Position struct {
	PositionID  string    `json:"position_id"`
	ScenarioID  string    `json:"scenario_id"`
	CycleID     string    `json:"cycle_id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Shares      int64     `json:"shares"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  money.Decimal `json:"entry_price"`
	EntryValue  money.Decimal `json:"entry_value"`

	ExitDate    *time.Time     `json:"exit_date,omitempty"`
	ExitPrice   *money.Decimal `json:"exit_price,omitempty"`
	ExitValue   *money.Decimal `json:"exit_value,omitempty"`
	RealizedPnL *money.Decimal `json:"realized_pnl,omitempty"`
	ReturnPct   *float64       `json:"return_pct,omitempty"`
	ExitReason  ExitReason     `json:"exit_reason,omitempty"`

	ConvictionTier       ConvictionTier `json:"conviction_tier"`
	PhilosophyApplied    string         `json:"philosophy_applied,omitempty"`
	SourceSignals        []string       `json:"source_signals"`
	RoundStart           time.Time      `json:"round_start"`
	RoundExpiry          time.Time      `json:"round_expiry"`
	RoundExtended        bool           `json:"round_extended"`
	DisciplineViolations int            `json:"discipline_violations"`

	Status PositionStatus `json:"status"`
}

// Order is a transient execution record.
type Order struct {
	OrderID       string      `json:"order_id"`
	BrokerOrderID string      `json:"broker_order_id,omitempty"`
	PositionID    string      `json:"position_id"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	OrderType     OrderType   `json:"order_type"`
	Quantity      int64       `json:"quantity"`
	LimitPrice    *money.Decimal `json:"limit_price,omitempty"`
	StopPrice     *money.Decimal `json:"stop_price,omitempty"`
	TimeInForce   string      `json:"time_in_force,omitempty"`

	Status         OrderStatus    `json:"status"`
	FilledQty      int64          `json:"filled_qty"`
	FilledAvgPrice *money.Decimal `json:"filled_avg_price,omitempty"`
	Commission     money.Decimal  `json:"commission"`
	SubmittedAt    time.Time      `json:"submitted_at"`
	FilledAt       *time.Time     `json:"filled_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Reason         string         `json:"reason"`
}

// PhilosophySettings configures the six overlay rule packs (§4.4.1) for one scenario.
type PhilosophySettings struct {
	Dalio      DalioSettings      `json:"dalio"`
	Buffett    BuffettSettings    `json:"buffett"`
	Pabrai     PabraiSettings     `json:"pabrai"`
	OLeary     OLearySettings     `json:"oleary"`
	Saylor     SaylorSettings     `json:"saylor"`
	Discipline DisciplineSettings `json:"discipline"`
}

// DalioSettings governs the "unlogged decision / intuition override" penalty.
type DalioSettings struct {
	Enabled bool    `json:"enabled"`
	Penalty float64 `json:"penalty"` // default -0.10
}

// BuffettSettings rejects trades below a minimum expected return.
type BuffettSettings struct {
	Enabled           bool    `json:"enabled"`
	MinExpectedReturn float64 `json:"min_expected_return"` // default 0.15
	Penalty           float64 `json:"penalty"`             // default -0.15
}

// PabraiSettings amplifies position size on signal clusters.
type PabraiSettings struct {
	Enabled            bool    `json:"enabled"`
	ClusterThreshold   int     `json:"cluster_threshold"`   // default 3
	PositionMultiplier float64 `json:"position_multiplier"` // default 2.0
	AllocationBonus    float64 `json:"allocation_bonus"`
}

// OLearySettings force-closes stale, underperforming positions.
type OLearySettings struct {
	Enabled           bool    `json:"enabled"`
	MaxHoldDays       int     `json:"max_hold_days"`        // default 90
	MinReturnThreshold float64 `json:"min_return_threshold"` // default 0.05
}

// SaylorSettings extends round expiry for high-Sharpe, high-tier positions.
type SaylorSettings struct {
	Enabled            bool           `json:"enabled"`
	SharpeThreshold    float64        `json:"sharpe_threshold"` // default 2.0
	MinTier            ConvictionTier `json:"min_tier"`         // default S
	ExtensionDays      int            `json:"extension_days"`  // default 30
	MaxExtensionPeriods int           `json:"max_extension_periods"`
}

// DisciplineSettings (the "Japanese discipline" pack) penalizes rule
// violations and restores allocation power over clean cycles.
type DisciplineSettings struct {
	Enabled     bool    `json:"enabled"`
	Penalty     float64 `json:"penalty"`      // default -0.20
	DecayRounds int     `json:"decay_rounds"` // clean cycles to fully restore
}

// DefaultPhilosophySettings returns the spec's documented defaults.
func DefaultPhilosophySettings() PhilosophySettings {
	return PhilosophySettings{
		Dalio:   DalioSettings{Enabled: true, Penalty: -0.10},
		Buffett: BuffettSettings{Enabled: true, MinExpectedReturn: 0.15, Penalty: -0.15},
		Pabrai:  PabraiSettings{Enabled: true, ClusterThreshold: 3, PositionMultiplier: 2.0, AllocationBonus: 0.0},
		OLeary:  OLearySettings{Enabled: true, MaxHoldDays: 90, MinReturnThreshold: 0.05},
		Saylor:  SaylorSettings{Enabled: true, SharpeThreshold: 2.0, MinTier: TierS, ExtensionDays: 30, MaxExtensionPeriods: 3},
		Discipline: DisciplineSettings{Enabled: true, Penalty: -0.20, DecayRounds: 4},
	}
}

// Scenario is a strategy variant with its own broker, positions, capital, and philosophy.
type Scenario struct {
	ScenarioID         string              `json:"scenario_id"`
	Name               string              `json:"name"`
	Type               ScenarioType        `json:"type"`
	PhilosophySettings PhilosophySettings  `json:"philosophy_settings"`
	InitialCapital     money.Decimal       `json:"initial_capital"`
	CurrentCapital     money.Decimal       `json:"current_capital"`
	TotalPnL           money.Decimal       `json:"total_pnl"`
	TotalReturnPct     float64             `json:"total_return_pct"`
	TradesWon          int                 `json:"trades_won"`
	TradesLost         int                 `json:"trades_lost"`
	MaxDrawdown        float64             `json:"max_drawdown"`
	SharpeRatio        *float64            `json:"sharpe_ratio,omitempty"`
	Volatility         *float64            `json:"volatility,omitempty"`
	IsActive           bool                `json:"is_active"`
}

// RuleViolation records one philosophy rule breach with its penalty.
type RuleViolation struct {
	Rule      string    `json:"rule"`
	Penalty   float64   `json:"penalty"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// PhilosophyState is the daily discipline ledger, one row per scenario per day.
type PhilosophyState struct {
	ScenarioID             string          `json:"scenario_id"`
	Date                   time.Time       `json:"date"`
	DecisionsLogged        int             `json:"decisions_logged"`
	IntuitionOverrides     int             `json:"intuition_overrides"`
	SafetyTrades           int             `json:"safety_trades"`
	ClusterDetections      int             `json:"cluster_detections"`
	ClusterTakes           int             `json:"cluster_takes"`
	RetiredPositions       int             `json:"retired_positions"`
	ExtendedPositions      int             `json:"extended_positions"`
	RuleViolationsCount    int             `json:"rule_violations"`
	CurrentAllocationPower float64         `json:"current_allocation_power"`
	ViolatedRules          []RuleViolation `json:"violated_rules"`
	CleanCycleStreak       int             `json:"clean_cycle_streak"`
}

// ClampAllocationPower enforces the [0.30, 1.50] bound on allocation power.
func ClampAllocationPower(power float64) float64 {
	if power < 0.30 {
		return 0.30
	}
	if power > 1.50 {
		return 1.50
	}
	return power
}

// AuditLog is one append-only, hash-chained event record.
type AuditLog struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason"`
	BeforeState  string    `json:"before_state,omitempty"`
	AfterState   string    `json:"after_state,omitempty"`
	EventHash    string    `json:"event_hash"`
	PreviousHash string    `json:"previous_hash"`
}

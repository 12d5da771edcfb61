// Package domain holds the core types shared by every subsystem: signals,
// cycles, positions, orders, scenarios, and the philosophy ledger. Variants
// (sources, phases, gates, exit reasons, ...) are modeled as closed string
// enums with exhaustive handling at the call sites that branch on them,
// never as ad-hoc untyped strings.
package domain

// SignalSource identifies where a signal originated.
type SignalSource string

const (
	SourceCongressional SignalSource = "CONGRESSIONAL"
	SourceInsiderForm4  SignalSource = "INSIDER_FORM4"
	SourceInsiderOther  SignalSource = "INSIDER_OTHER"
	SourceInstitutional SignalSource = "INSTITUTIONAL_13F"
)

// Direction is the directional bet implied by a signal or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for LONG, -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// ConvictionTier is the categorical bucket derived from a signal's total score.
type ConvictionTier string

const (
	TierS      ConvictionTier = "S"
	TierA      ConvictionTier = "A"
	TierB      ConvictionTier = "B"
	TierC      ConvictionTier = "C"
	TierReject ConvictionTier = "REJECT"
)

// Value returns the ordinal used by the review-cycle escalator's Δtier
// comparison (S=4 ... C=1; REJECT has no ordinal and should never reach a
// position).
func (t ConvictionTier) Value() int {
	switch t {
	case TierS:
		return 4
	case TierA:
		return 3
	case TierB:
		return 2
	case TierC:
		return 1
	default:
		return 0
	}
}

// TierFromScore maps a total_score in [0,1] to its conviction tier.
func TierFromScore(score float64) ConvictionTier {
	switch {
	case score >= 0.80:
		return TierS
	case score >= 0.65:
		return TierA
	case score >= 0.50:
		return TierB
	case score >= 0.35:
		return TierC
	default:
		return TierReject
	}
}

// SignalStatus is the lifecycle state of a Signal.
type SignalStatus string

const (
	SignalPending  SignalStatus = "PENDING"
	SignalActive   SignalStatus = "ACTIVE"
	SignalExpired  SignalStatus = "EXPIRED"
	SignalRejected SignalStatus = "REJECTED"
)

// CycleStatus is the lifecycle state of a Cycle.
type CycleStatus string

const (
	CycleActive    CycleStatus = "ACTIVE"
	CycleCompleted CycleStatus = "COMPLETED"
	CycleCancelled CycleStatus = "CANCELLED"
)

// Phase is the sub-interval of a cycle that governs allocation and risk rules.
type Phase string

const (
	PhaseLoad       Phase = "LOAD"
	PhaseActive     Phase = "ACTIVE"
	PhaseScaleOut   Phase = "SCALE_OUT"
	PhaseForceClose Phase = "FORCE_CLOSE"
)

// DrawdownGate is the coarse risk state derived from current/max drawdown.
type DrawdownGate string

const (
	GateGreen   DrawdownGate = "GREEN"
	GateYellow  DrawdownGate = "YELLOW"
	GateRed     DrawdownGate = "RED"
	GateNuclear DrawdownGate = "NUCLEAR"
)

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

const (
	PositionPending     PositionStatus = "PENDING"
	PositionOpen        PositionStatus = "OPEN"
	PositionClosed      PositionStatus = "CLOSED"
	PositionForceClosed PositionStatus = "FORCE_CLOSED"
)

// ExitReason tags why a position was closed.
type ExitReason string

const (
	ExitProfitTake        ExitReason = "PROFIT_TAKE"
	ExitStop              ExitReason = "STOP"
	ExitReallocation      ExitReason = "REALLOCATION"
	ExitEscalation        ExitReason = "TIER_ESCALATION_CONFIRMED"
	ExitExpiry            ExitReason = "EXPIRY"
	ExitEmergency         ExitReason = "EMERGENCY"
	ExitOLearyDiscipline  ExitReason = "OLEARY_DISCIPLINE"
)

// OrderSide is BUY or SELL.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the broker order type.
type OrderType string

const (
	OrderMarket    OrderType = "MARKET"
	OrderLimit     OrderType = "LIMIT"
	OrderStop      OrderType = "STOP"
	OrderStopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderFilled          OrderStatus = "FILLED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
)

// OrderReason is the human tag attached to an order describing its intent.
type OrderReason string

const (
	ReasonEntry               OrderReason = "ENTRY"
	ReasonExit                OrderReason = "EXIT"
	ReasonReallocation        OrderReason = "REALLOCATION"
	ReasonStop                OrderReason = "STOP"
	ReasonExpiry              OrderReason = "EXPIRY"
	ReasonTierEscalation      OrderReason = "TIER_ESCALATION_CONFIRMED"
	ReasonEmergencyPrefix     OrderReason = "EMERGENCY_L"
)

// ScenarioType names a strategy variant's risk posture.
type ScenarioType string

const (
	ScenarioConservative ScenarioType = "Conservative"
	ScenarioBalanced     ScenarioType = "Balanced"
	ScenarioAggressive   ScenarioType = "Aggressive"
	ScenarioHighRisk     ScenarioType = "High-Risk"
	ScenarioCustom       ScenarioType = "Custom"
)

// Package philosophy implements the six overlay rule packs of §4.4.1 and
// the engine that tracks each scenario's daily PhilosophyState and
// allocation_power scalar.
package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Decision is the context a rule evaluates against: one candidate trade
// or position under consideration this tick.
type Decision struct {
	Symbol             string
	Direction          domain.Direction
	ExpectedReturn     float64
	ClusterCount       int
	HoldDays           int
	ReturnPct          float64
	SharpeRatio        *float64
	ConvictionTier     domain.ConvictionTier
	WasLogged          bool
	WasIntuitionOverride bool
}

// Outcome is what a rule wants to happen to the decision/state.
type Outcome struct {
	Violated        bool
	Rule            string
	Penalty         float64
	Reason          string
	RejectTrade     bool
	ForceClose      bool
	SizeMultiplier  float64 // 1.0 = no change
	AllocationBonus float64
	ExtendDays      int
}

// Rule is the shared contract every philosophy pack implements, so the
// Engine can invoke all enabled packs uniformly.
type Rule interface {
	Name() string
	Evaluate(settings domain.PhilosophySettings, d Decision) Outcome
}

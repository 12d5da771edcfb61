package philosophy

import (
	"sync"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
)

// Engine owns one scenario's daily PhilosophyState and its process-wide
// allocation_power scalar (§4.4.1). It is not safe to share across
// scenarios: each scenario in internal/scenario owns its own Engine.
type Engine struct {
	mu       sync.Mutex
	settings domain.PhilosophySettings
	state    domain.PhilosophyState

	extensionsUsed map[string]int // position_id -> Saylor extensions applied
}

// NewEngine creates a philosophy engine starting at full allocation power.
func NewEngine(scenarioID string, settings domain.PhilosophySettings) *Engine {
	return &Engine{
		settings: settings,
		state: domain.PhilosophyState{
			ScenarioID:             scenarioID,
			Date:                   time.Now().UTC(),
			CurrentAllocationPower: 1.0,
		},
		extensionsUsed: make(map[string]int),
	}
}

// Settings returns the engine's current settings (read-only snapshot).
func (e *Engine) Settings() domain.PhilosophySettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings replaces the engine's settings (e.g. via the
// /philosophy/update endpoint).
func (e *Engine) UpdateSettings(settings domain.PhilosophySettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = settings
}

// ResetSettings restores the spec's documented defaults.
func (e *Engine) ResetSettings() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = domain.DefaultPhilosophySettings()
}

// State returns a snapshot of the current PhilosophyState.
func (e *Engine) State() domain.PhilosophyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.state
	cp.ViolatedRules = append([]domain.RuleViolation(nil), e.state.ViolatedRules...)
	return cp
}

// AllocationPower returns the current process-wide scalar.
func (e *Engine) AllocationPower() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.CurrentAllocationPower
}

// rules is the fixed evaluation order; Discipline runs last since its
// violation is driven by the other five packs' outcomes, not its own
// independent trigger.
var rules = []Rule{Dalio{}, Buffett{}, Pabrai{}, OLeary{}, Saylor{}}

// Evaluate runs every enabled rule pack against one decision, applying
// any resulting allocation_power penalty and accumulating a combined
// size multiplier / reject / force-close / extend-days outcome. Saylor's
// extension is capped by max_extension_periods per position via
// positionID.
func (e *Engine) Evaluate(positionID string, d Decision) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	combined := Outcome{SizeMultiplier: 1.0}
	anyViolation := false

	for _, rule := range rules {
		out := rule.Evaluate(e.settings, d)

		if out.Violated {
			anyViolation = true
			e.applyPenaltyLocked(out)
		}
		if out.RejectTrade {
			combined.RejectTrade = true
		}
		if out.ForceClose {
			combined.ForceClose = true
		}
		if out.SizeMultiplier != 0 && out.SizeMultiplier != 1.0 {
			combined.SizeMultiplier *= out.SizeMultiplier
		}
		combined.AllocationBonus += out.AllocationBonus

		if rule.Name() == "saylor" && out.ExtendDays > 0 {
			used := e.extensionsUsed[positionID]
			if used < e.settings.Saylor.MaxExtensionPeriods {
				combined.ExtendDays = out.ExtendDays
				e.extensionsUsed[positionID] = used + 1
				e.state.ExtendedPositions++
			}
		}
		if rule.Name() == "pabrai" && out.Reason == "signal cluster detected" {
			e.state.ClusterDetections++
			if out.SizeMultiplier > 1.0 {
				e.state.ClusterTakes++
			}
		}
		if rule.Name() == "oleary" && out.ForceClose {
			e.state.RetiredPositions++
		}
	}

	if anyViolation && e.settings.Discipline.Enabled {
		disc := Discipline{}.Evaluate(e.settings, d)
		e.applyPenaltyLocked(disc)
		e.state.CleanCycleStreak = 0
	} else {
		e.state.CleanCycleStreak++
	}

	e.state.DecisionsLogged++
	if !d.WasLogged {
		e.state.SafetyTrades++
	}
	if d.WasIntuitionOverride {
		e.state.IntuitionOverrides++
	}

	return combined
}

// applyPenaltyLocked folds a rule violation into allocation_power and the
// violated-rules ledger. Caller must hold e.mu.
func (e *Engine) applyPenaltyLocked(out Outcome) {
	e.state.CurrentAllocationPower = domain.ClampAllocationPower(e.state.CurrentAllocationPower * (1 + out.Penalty))
	e.state.RuleViolationsCount++
	e.state.ViolatedRules = append(e.state.ViolatedRules, domain.RuleViolation{
		Rule:      out.Rule,
		Penalty:   out.Penalty,
		Timestamp: time.Now().UTC(),
		Reason:    out.Reason,
	})
}

// RestoreOnCleanCycle linearly restores allocation_power toward 1.0 once
// decay_rounds consecutive clean cycles have elapsed (§4.4.1). Called
// once per completed cycle.
func (e *Engine) RestoreOnCleanCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.settings.Discipline.Enabled || e.settings.Discipline.DecayRounds <= 0 {
		return
	}
	if e.state.CleanCycleStreak < e.settings.Discipline.DecayRounds {
		return
	}

	step := -e.settings.Discipline.Penalty / float64(e.settings.Discipline.DecayRounds)
	if e.state.CurrentAllocationPower < 1.0 {
		e.state.CurrentAllocationPower = domain.ClampAllocationPower(e.state.CurrentAllocationPower + step)
	} else if e.state.CurrentAllocationPower > 1.0 {
		e.state.CurrentAllocationPower = domain.ClampAllocationPower(e.state.CurrentAllocationPower - step)
	}
}

package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Dalio penalizes unlogged decisions and intuition overrides, per §4.4.1.
type Dalio struct{}

var _ Rule = Dalio{}

func (Dalio) Name() string { return "dalio" }

func (Dalio) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.Dalio.Enabled {
		return Outcome{SizeMultiplier: 1.0}
	}
	if d.WasLogged && !d.WasIntuitionOverride {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Violated:       true,
		Rule:           "dalio",
		Penalty:        settings.Dalio.Penalty,
		Reason:         "unlogged decision or intuition override",
		SizeMultiplier: 1.0,
	}
}

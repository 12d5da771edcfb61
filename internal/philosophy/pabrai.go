package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Pabrai amplifies position size when a cluster of concurrent signals
// agrees on the same (symbol, direction), per §4.4.1.
type Pabrai struct{}

var _ Rule = Pabrai{}

func (Pabrai) Name() string { return "pabrai" }

func (Pabrai) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.Pabrai.Enabled || d.ClusterCount < settings.Pabrai.ClusterThreshold {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Rule:            "pabrai",
		Reason:          "signal cluster detected",
		SizeMultiplier:  settings.Pabrai.PositionMultiplier,
		AllocationBonus: settings.Pabrai.AllocationBonus,
	}
}

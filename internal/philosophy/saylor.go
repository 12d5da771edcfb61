package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Saylor extends a high-Sharpe, high-tier position's round expiry rather
// than force-closing it at cycle end, per §4.4.1.
type Saylor struct{}

var _ Rule = Saylor{}

func (Saylor) Name() string { return "saylor" }

func (Saylor) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.Saylor.Enabled {
		return Outcome{SizeMultiplier: 1.0}
	}
	if d.SharpeRatio == nil || *d.SharpeRatio < settings.Saylor.SharpeThreshold {
		return Outcome{SizeMultiplier: 1.0}
	}
	if d.ConvictionTier.Value() < settings.Saylor.MinTier.Value() {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Rule:           "saylor",
		Reason:         "high Sharpe, high tier: extending round",
		SizeMultiplier: 1.0,
		ExtendDays:     settings.Saylor.ExtensionDays,
	}
}

package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Buffett rejects trades whose expected return is below a threshold,
// per §4.4.1.
type Buffett struct{}

var _ Rule = Buffett{}

func (Buffett) Name() string { return "buffett" }

func (Buffett) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.Buffett.Enabled {
		return Outcome{SizeMultiplier: 1.0}
	}
	if d.ExpectedReturn >= settings.Buffett.MinExpectedReturn {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Violated:       true,
		Rule:           "buffett",
		Penalty:        settings.Buffett.Penalty,
		Reason:         "expected return below minimum",
		RejectTrade:    true,
		SizeMultiplier: 1.0,
	}
}

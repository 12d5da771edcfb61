package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// OLeary forces the close of positions held too long with insufficient
// return, per §4.4.1.
type OLeary struct{}

var _ Rule = OLeary{}

func (OLeary) Name() string { return "oleary" }

func (OLeary) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.OLeary.Enabled {
		return Outcome{SizeMultiplier: 1.0}
	}
	if d.HoldDays <= settings.OLeary.MaxHoldDays || d.ReturnPct >= settings.OLeary.MinReturnThreshold {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Rule:           "oleary",
		Reason:         "held too long with insufficient return",
		ForceClose:     true,
		SizeMultiplier: 1.0,
	}
}

package philosophy

import "github.com/aristath/signalcycle/internal/domain"

// Discipline (the "Japanese discipline" pack) penalizes a rule violation
// and, outside Evaluate, restores allocation power over clean cycles via
// Engine.Restore. Evaluate itself only reports the violation; the caller
// decides what constitutes one (e.g. another pack's Violated outcome).
type Discipline struct{}

var _ Rule = Discipline{}

func (Discipline) Name() string { return "discipline" }

func (Discipline) Evaluate(settings domain.PhilosophySettings, d Decision) Outcome {
	if !settings.Discipline.Enabled {
		return Outcome{SizeMultiplier: 1.0}
	}
	return Outcome{
		Violated:       true,
		Rule:           "discipline",
		Penalty:        settings.Discipline.Penalty,
		Reason:         "rule violation",
		SizeMultiplier: 1.0,
	}
}

package scoring

import "github.com/aristath/signalcycle/internal/domain"

// FilerRole is the insider's title, used only for the INSIDER_FORM4 role
// multiplier; other sources ignore it.
type FilerRole string

const (
	RoleCEO          FilerRole = "CEO"
	RoleCFO          FilerRole = "CFO"
	RolePresidentCOO FilerRole = "PRESIDENT_COO"
	RoleOtherCSuite  FilerRole = "OTHER_C_SUITE"
	RoleDirector     FilerRole = "DIRECTOR"
	RoleOtherOfficer FilerRole = "OTHER_OFFICER"
	RoleUnknown      FilerRole = "UNKNOWN"
)

func roleMultiplier(role FilerRole) float64 {
	switch role {
	case RoleCEO:
		return 1.5
	case RoleCFO:
		return 1.4
	case RolePresidentCOO:
		return 1.3
	case RoleOtherCSuite:
		return 1.2
	case RoleDirector:
		return 1.0
	case RoleOtherOfficer:
		return 0.9
	default:
		return 0.7
	}
}

// Competence blends a filer's historical win rate with a track-record
// confidence factor, then applies a role multiplier for INSIDER_FORM4
// filers (§4.3). tradesTracked and winRate are zero when unknown.
func Competence(source domain.SignalSource, tradesTracked int, winRate float64, role FilerRole) float64 {
	var base float64
	if tradesTracked == 0 {
		base = 0.5
	} else if tradesTracked >= 5 {
		base = winRate
	} else {
		base = 0.5 + (winRate-0.5)*(float64(tradesTracked)/5.0)
	}

	if source != domain.SourceInsiderForm4 {
		return clamp01(base)
	}

	scored := base * roleMultiplier(role)
	if scored > 1.0 {
		scored = 1.0
	}
	return clamp01(scored)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

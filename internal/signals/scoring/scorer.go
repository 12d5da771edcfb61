package scoring

import (
	"math"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
)

const (
	weightRecency    = 0.25
	weightSize       = 0.20
	weightCompetence = 0.30
	weightConsensus  = 0.15
	weightRegime     = 0.10
)

// FilerHistory is the caller-supplied track record for the signal's
// filer, used by the competence factor.
type FilerHistory struct {
	TradesTracked int
	WinRate       float64
	Role          FilerRole
}

// Inputs bundles everything the scorer needs beyond the signal itself.
type Inputs struct {
	ConcurrentSignals int
	Filer             FilerHistory
	Now               time.Time
}

// Score computes every factor for a signal, assigns the weighted total
// (rounded to 4 decimals) and the resulting tier, and returns the signal
// with its scoring fields populated.
func Score(s domain.Signal, in Inputs) domain.Signal {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	txValue, _ := s.TransactionValue.Float64()

	s.Recency = Recency(s.FilingDate, now)
	s.Size = Size(txValue)
	s.Competence = Competence(s.Source, in.Filer.TradesTracked, in.Filer.WinRate, in.Filer.Role)
	s.Consensus = Consensus(in.ConcurrentSignals)
	s.Regime = Regime()

	total := weightRecency*s.Recency + weightSize*s.Size + weightCompetence*s.Competence +
		weightConsensus*s.Consensus + weightRegime*s.Regime
	s.TotalScore = math.Round(total*10000) / 10000

	s.ConvictionTier = domain.TierFromScore(s.TotalScore)
	if s.ConvictionTier == domain.TierReject {
		s.Status = domain.SignalRejected
	} else {
		s.Status = domain.SignalActive
	}

	return s
}

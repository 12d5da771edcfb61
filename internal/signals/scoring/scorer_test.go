package scoring

import (
	"testing"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/stretchr/testify/assert"
)

func TestRecencyMissingDateDefaultsToHalf(t *testing.T) {
	assert.Equal(t, 0.5, Recency(time.Time{}, time.Now()))
}

func TestRecencyDecaysWithAge(t *testing.T) {
	now := time.Now().UTC()
	fresh := Recency(now, now)
	aged := Recency(now.AddDate(0, 0, -30), now)
	assert.Greater(t, fresh, aged)
}

func TestSizeStepFunction(t *testing.T) {
	cases := []struct {
		value    float64
		expected float64
	}{
		{10_000_000, 1.0},
		{1_000_000, 0.8},
		{100_000, 0.5},
		{10_000, 0.3},
		{9_999, 0.1},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, Size(c.value))
	}
}

func TestCompetenceUnknownDefaultsToHalf(t *testing.T) {
	assert.Equal(t, 0.5, Competence(domain.SourceInstitutional, 0, 0, RoleUnknown))
}

func TestCompetenceForm4RoleMultiplierCapped(t *testing.T) {
	v := Competence(domain.SourceInsiderForm4, 10, 1.0, RoleCEO)
	assert.Equal(t, 1.0, v)
}

func TestCompetenceBlendsWithLowSampleSize(t *testing.T) {
	v := Competence(domain.SourceInstitutional, 2, 1.0, RoleUnknown)
	assert.InDelta(t, 0.7, v, 0.0001)
}

func TestConsensusThresholds(t *testing.T) {
	assert.Equal(t, 1.0, Consensus(5))
	assert.Equal(t, 0.8, Consensus(3))
	assert.Equal(t, 0.5, Consensus(2))
	assert.Equal(t, 0.3, Consensus(1))
	assert.Equal(t, 0.2, Consensus(0))
}

func TestScoreAssignsTierFromWeightedTotal(t *testing.T) {
	s := domain.Signal{
		Source:           domain.SourceInstitutional,
		TransactionValue: money.FromFloat(15_000_000),
		FilingDate:       time.Now().UTC(),
	}
	scored := Score(s, Inputs{ConcurrentSignals: 5, Filer: FilerHistory{TradesTracked: 10, WinRate: 0.9}, Now: time.Now().UTC()})

	assert.Greater(t, scored.TotalScore, 0.0)
	assert.NotEqual(t, domain.TierReject, scored.ConvictionTier)
}

func TestScoreRejectsLowTotal(t *testing.T) {
	s := domain.Signal{
		Source:           domain.SourceInstitutional,
		TransactionValue: money.FromFloat(10_000),
		FilingDate:       time.Now().UTC().AddDate(0, 0, -90),
	}
	scored := Score(s, Inputs{ConcurrentSignals: 0, Filer: FilerHistory{TradesTracked: 0}, Now: time.Now().UTC()})

	assert.Equal(t, domain.TierReject, scored.ConvictionTier)
	assert.Equal(t, domain.SignalRejected, scored.Status)
}

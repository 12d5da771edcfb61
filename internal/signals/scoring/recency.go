package scoring

import (
	"math"
	"time"
)

const recencyHalfLifeDays = 18.0

// Recency combines a linear decay over 90 days with an exponential decay
// at an 18-day half-life, per §4.3. A missing filing date scores 0.5.
func Recency(filingDate time.Time, now time.Time) float64 {
	if filingDate.IsZero() {
		return 0.5
	}
	days := now.Sub(filingDate).Hours() / 24
	if days < 0 {
		days = 0
	}

	linear := math.Max(0, 1-days/90)
	lambda := math.Ln2 / recencyHalfLifeDays
	exponential := math.Exp(-lambda * days)

	return linear * exponential
}

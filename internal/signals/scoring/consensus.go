package scoring

// Consensus scores agreement among concurrently ACTIVE signals on the
// same (symbol, direction), by count (§4.3).
func Consensus(concurrentCount int) float64 {
	switch {
	case concurrentCount >= 5:
		return 1.0
	case concurrentCount >= 3:
		return 0.8
	case concurrentCount >= 2:
		return 0.5
	case concurrentCount == 1:
		return 0.3
	default:
		return 0.2
	}
}

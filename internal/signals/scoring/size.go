package scoring

// Size is a step function over transaction value (§4.3).
func Size(transactionValue float64) float64 {
	switch {
	case transactionValue >= 10_000_000:
		return 1.0
	case transactionValue >= 1_000_000:
		return 0.8
	case transactionValue >= 100_000:
		return 0.5
	case transactionValue >= 10_000:
		return 0.3
	default:
		return 0.1
	}
}

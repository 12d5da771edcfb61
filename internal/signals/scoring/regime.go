package scoring

// Regime is an extension point for a future market-regime classifier
// (risk-on/risk-off, volatility cluster). Fixed at the spec's placeholder
// value until that classifier exists.
func Regime() float64 {
	return 0.5
}

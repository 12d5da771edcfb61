package domain

import "errors"

// Error taxonomy (§7 of SPEC_FULL.md). Only ErrInvariant is fatal for the
// current scheduled task; every other class is recovered locally by the
// caller and logged, never aborting a batch.
var (
	// ErrInvariant signals state corruption (e.g. a CLOSED position with no
	// exit_price). The scheduler aborts the current task and does not
	// advance the cycle, but the process keeps running.
	ErrInvariant = errors.New("invariant violation")

	// ErrCapacity signals a sizing/liquidity decision was skipped: no cash,
	// no open slots, or insufficient liquidity.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrTransient signals a fetch or quote timeout; the caller should
	// simply retry on the next scheduled tick.
	ErrTransient = errors.New("transient I/O failure")
)

// PolicyError wraps a philosophy rule violation. It is never fatal: the
// allocator applies the penalty and may still allow the decision.
type PolicyError struct {
	Rule    string
	Penalty float64
	Reason  string
}

func (e *PolicyError) Error() string {
	return "policy violation (" + e.Rule + "): " + e.Reason
}

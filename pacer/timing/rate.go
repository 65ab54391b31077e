package timing

import "time"

const (
	// DefaultRate is the simulation rate used when none is configured.
	DefaultRate = 60.0

	// DefaultMaxElapsed bounds how much wall time a single tick may try to
	// catch up on after a stall.
	DefaultMaxElapsed = 500 * time.Millisecond
)

// StepForRate returns the duration of a single step when running hz steps
// per second. Non-positive rates yield zero.
func StepForRate(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// RateForStep is the inverse of StepForRate.
func RateForStep(step time.Duration) float64 {
	if step <= 0 {
		return 0
	}
	return float64(time.Second) / float64(step)
}

// DefaultStep returns the step duration at DefaultRate.
func DefaultStep() time.Duration {
	return StepForRate(DefaultRate)
}

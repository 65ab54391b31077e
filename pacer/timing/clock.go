package timing

import "time"

// Clock supplies monotonic time and a blocking sleep to the frame pacing
// code. Implementations are not required to be safe for concurrent use.
type Clock interface {
	// Now returns the time elapsed since the clock's reference point.
	// Successive calls never return a smaller value.
	Now() time.Duration

	// Sleep blocks for approximately d. It may overshoot; callers that care
	// re-measure with Now afterwards.
	Sleep(d time.Duration)
}

// spinThreshold is the remaining wait under which SystemClock stops calling
// time.Sleep and busy-waits instead.
const spinThreshold = 2 * time.Millisecond

// SystemClock reads the process monotonic clock.
// Sleep combines time.Sleep for efficiency with busy-waiting for accuracy.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c *SystemClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	deadline := time.Now().Add(d)
	if d >= spinThreshold {
		time.Sleep(d - time.Millisecond)
	}
	for time.Now().Before(deadline) {
		// busy-wait the last millisecond, OS sleeps are too coarse for it.
	}
}

// ManualClock is a Clock whose time only moves when told to. Sleep advances
// it by the requested duration plus a configurable overshoot, so throttled
// loops run deterministically and instantly.
type ManualClock struct {
	now       time.Duration
	overshoot time.Duration

	sleepCount int
	slept      time.Duration
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() time.Duration {
	return c.now
}

// Advance moves the clock forward. Negative values are ignored, the clock
// is monotonic.
func (c *ManualClock) Advance(d time.Duration) {
	if d > 0 {
		c.now += d
	}
}

func (c *ManualClock) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.sleepCount++
	c.slept += d
	c.now += d + c.overshoot
}

// SetOvershoot makes every subsequent Sleep last d longer than requested,
// mimicking an OS scheduler that wakes late.
func (c *ManualClock) SetOvershoot(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.overshoot = d
}

// SleepCount returns how many times Sleep has been called.
func (c *ManualClock) SleepCount() int {
	return c.sleepCount
}

// Slept returns the total duration requested through Sleep, excluding
// overshoot.
func (c *ManualClock) Slept() time.Duration {
	return c.slept
}

var (
	_ Clock = (*SystemClock)(nil)
	_ Clock = (*ManualClock)(nil)
)

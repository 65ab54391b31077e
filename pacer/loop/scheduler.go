package loop

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-pacer/pacer/timing"
)

// ErrInvalidConfiguration is returned when a step or ceiling is rejected.
var ErrInvalidConfiguration = errors.New("invalid scheduler configuration")

const (
	// slowlyLagThreshold is the catch-up debt at which the running slowly
	// signal is raised.
	slowlyLagThreshold = 5

	// sleepGranularity is the resolution of throttle sleeps.
	sleepGranularity = time.Millisecond
)

// Config holds the scheduler settings.
type Config struct {
	TargetStep      time.Duration
	MaxElapsed      time.Duration
	IsFixedTimeStep bool
}

// DefaultConfig returns a fixed 60Hz configuration with a 500ms stall clamp.
func DefaultConfig() Config {
	return Config{
		TargetStep:      timing.DefaultStep(),
		MaxElapsed:      timing.DefaultMaxElapsed,
		IsFixedTimeStep: true,
	}
}

// Validate reports whether the configuration can drive a scheduler.
func (c Config) Validate() error {
	if c.MaxElapsed <= 0 {
		return fmt.Errorf("%w: max elapsed %s must be positive", ErrInvalidConfiguration, c.MaxElapsed)
	}
	return validateTargetStep(c.TargetStep, c.MaxElapsed)
}

func validateTargetStep(step, maxElapsed time.Duration) error {
	if step <= 0 {
		return fmt.Errorf("%w: target step %s must be positive", ErrInvalidConfiguration, step)
	}
	if step > maxElapsed {
		return fmt.Errorf("%w: target step %s exceeds max elapsed %s", ErrInvalidConfiguration, step, maxElapsed)
	}
	return nil
}

// Scheduler converts a free running clock into Simulate and Render calls.
// It is meant to be driven from a single goroutine.
type Scheduler struct {
	clock timing.Clock
	game  Game
	gate  DrawGate

	targetStep      time.Duration
	maxElapsed      time.Duration
	isFixedTimeStep bool

	accumulatedElapsed    time.Duration
	previousTimestamp     time.Duration
	updateFrameLag        int
	isRunningSlowly       bool
	suppressDrawRequested bool

	// step carries the running total and the last reported elapsed value
	step Step

	ticks           uint64
	simulations     uint64
	renders         uint64
	suppressedDraws uint64
}

// New creates a scheduler reading time from clock and driving game.
// If game implements DrawGate it is consulted before each Render.
func New(clock timing.Clock, game Game, config Config) (*Scheduler, error) {
	if clock == nil {
		return nil, errors.New("scheduler requires a clock")
	}
	if game == nil {
		return nil, errors.New("scheduler requires a game")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		clock:           clock,
		game:            game,
		targetStep:      config.TargetStep,
		maxElapsed:      config.MaxElapsed,
		isFixedTimeStep: config.IsFixedTimeStep,
	}
	s.gate, _ = game.(DrawGate)
	s.previousTimestamp = clock.Now()

	return s, nil
}

// Tick runs one iteration: measure, throttle, clamp, simulate, render.
// The fixed step mode and target step are read once on entry, changes made
// by callbacks take effect on the next Tick.
func (s *Scheduler) Tick() error {
	fixed := s.isFixedTimeStep
	targetStep := s.targetStep
	s.ticks++

	s.measure()
	for fixed && s.accumulatedElapsed < targetStep {
		s.clock.Sleep(throttleSleep(targetStep - s.accumulatedElapsed))
		s.measure()
	}

	if s.accumulatedElapsed > s.maxElapsed {
		slog.Debug("Stall clamp discarded elapsed time",
			"discarded", s.accumulatedElapsed-s.maxElapsed,
			"max_elapsed", s.maxElapsed)
		s.accumulatedElapsed = s.maxElapsed
	}

	var err error
	if fixed {
		err = s.runFixed(targetStep)
	} else {
		err = s.runVariable()
	}
	if err != nil {
		return err
	}

	return s.draw()
}

func (s *Scheduler) measure() {
	now := s.clock.Now()
	delta := now - s.previousTimestamp
	s.previousTimestamp = now

	// a clock going backwards contributes nothing
	if delta > 0 {
		s.accumulatedElapsed += delta
	}
}

func (s *Scheduler) runFixed(targetStep time.Duration) error {
	stepCount := 0
	for s.accumulatedElapsed >= targetStep {
		s.step.Total += targetStep
		s.accumulatedElapsed -= targetStep
		stepCount++

		s.step.Elapsed = targetStep
		s.step.IsRunningSlowly = s.isRunningSlowly
		s.simulations++
		if err := s.game.Simulate(s.step); err != nil {
			return err
		}
	}

	// every step past the first is catch-up debt
	s.updateFrameLag += max(0, stepCount-1)

	if s.isRunningSlowly {
		if s.updateFrameLag == 0 {
			s.setRunningSlowly(false)
		}
	} else if s.updateFrameLag >= slowlyLagThreshold {
		s.setRunningSlowly(true)
	}

	// debt is only repaid by a clean single step tick
	if stepCount == 1 && s.updateFrameLag > 0 {
		s.updateFrameLag--
	}

	s.step.Elapsed = targetStep * time.Duration(stepCount)
	return nil
}

func (s *Scheduler) runVariable() error {
	s.step.Elapsed = s.accumulatedElapsed
	s.step.Total += s.accumulatedElapsed
	s.step.IsRunningSlowly = s.isRunningSlowly

	s.simulations++
	if err := s.game.Simulate(s.step); err != nil {
		return err
	}

	s.accumulatedElapsed = 0
	return nil
}

func (s *Scheduler) draw() error {
	if s.suppressDrawRequested {
		s.suppressDrawRequested = false
		s.suppressedDraws++
		return nil
	}

	if s.gate != nil && !s.gate.BeginDraw() {
		return nil
	}

	s.renders++
	if err := s.game.Render(s.step); err != nil {
		return err
	}

	if s.gate != nil {
		s.gate.EndDraw()
	}
	return nil
}

func (s *Scheduler) setRunningSlowly(slowly bool) {
	s.isRunningSlowly = slowly
	slog.Debug("Running slowly changed",
		"running_slowly", slowly,
		"frame_lag", s.updateFrameLag,
		"tick", s.ticks)
}

// throttleSleep rounds a remaining wait up to whole milliseconds, so a
// positive remainder never turns into a zero length sleep.
func throttleSleep(remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	return (remaining + sleepGranularity - 1) / sleepGranularity * sleepGranularity
}

// SetTargetStep changes the fixed step duration. Non-positive values, and
// values larger than the max elapsed ceiling, are rejected and the current
// step is kept.
func (s *Scheduler) SetTargetStep(step time.Duration) error {
	if err := validateTargetStep(step, s.maxElapsed); err != nil {
		return err
	}
	s.targetStep = step
	return nil
}

func (s *Scheduler) TargetStep() time.Duration {
	return s.targetStep
}

// SetFixedTimeStep switches between fixed and variable stepping. The change
// is picked up by the next Tick.
func (s *Scheduler) SetFixedTimeStep(fixed bool) {
	s.isFixedTimeStep = fixed
}

func (s *Scheduler) IsFixedTimeStep() bool {
	return s.isFixedTimeStep
}

func (s *Scheduler) MaxElapsed() time.Duration {
	return s.maxElapsed
}

// SuppressDraw skips the next Render. Calling it more than once before the
// draw happens has the same effect as calling it once.
func (s *Scheduler) SuppressDraw() {
	s.suppressDrawRequested = true
}

// ResetElapsedTime drops any accumulated time and resynchronises with the
// clock, so that resuming after a long pause does not trigger a burst of
// catch-up steps.
func (s *Scheduler) ResetElapsedTime() {
	s.accumulatedElapsed = 0
	s.step.Elapsed = 0
	s.previousTimestamp = s.clock.Now()
}

func (s *Scheduler) IsRunningSlowly() bool {
	return s.isRunningSlowly
}

func (s *Scheduler) FrameLag() int {
	return s.updateFrameLag
}

func (s *Scheduler) Accumulated() time.Duration {
	return s.accumulatedElapsed
}

func (s *Scheduler) TotalSimulated() time.Duration {
	return s.step.Total
}

// Stats is a point in time copy of the scheduler state.
type Stats struct {
	TargetStep      time.Duration
	MaxElapsed      time.Duration
	IsFixedTimeStep bool

	Accumulated     time.Duration
	TotalSimulated  time.Duration
	LastStep        Step
	FrameLag        int
	IsRunningSlowly bool

	Ticks           uint64
	Simulations     uint64
	Renders         uint64
	SuppressedDraws uint64
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		TargetStep:      s.targetStep,
		MaxElapsed:      s.maxElapsed,
		IsFixedTimeStep: s.isFixedTimeStep,
		Accumulated:     s.accumulatedElapsed,
		TotalSimulated:  s.step.Total,
		LastStep:        s.step,
		FrameLag:        s.updateFrameLag,
		IsRunningSlowly: s.isRunningSlowly,
		Ticks:           s.ticks,
		Simulations:     s.simulations,
		Renders:         s.renders,
		SuppressedDraws: s.suppressedDraws,
	}
}

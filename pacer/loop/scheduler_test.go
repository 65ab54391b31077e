package loop_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-pacer/pacer/loop"
	"github.com/valerio/go-pacer/pacer/timing"
)

const testStep = 16 * time.Millisecond

// recorder is a Game that remembers every step it was handed
type recorder struct {
	simulated []loop.Step
	rendered  []loop.Step

	onSimulate func(step loop.Step) error
	onRender   func(step loop.Step) error
}

func (r *recorder) Simulate(step loop.Step) error {
	r.simulated = append(r.simulated, step)
	if r.onSimulate != nil {
		return r.onSimulate(step)
	}
	return nil
}

func (r *recorder) Render(step loop.Step) error {
	r.rendered = append(r.rendered, step)
	if r.onRender != nil {
		return r.onRender(step)
	}
	return nil
}

// gatedRecorder vetoes drawing while open is false
type gatedRecorder struct {
	recorder
	open      bool
	beginDraw int
	endDraw   int
}

func (g *gatedRecorder) BeginDraw() bool {
	g.beginDraw++
	return g.open
}

func (g *gatedRecorder) EndDraw() {
	g.endDraw++
}

// scriptedClock returns readings from a fixed list, repeating the last one
type scriptedClock struct {
	readings []time.Duration
	sleeps   []time.Duration
}

func (c *scriptedClock) Now() time.Duration {
	now := c.readings[0]
	if len(c.readings) > 1 {
		c.readings = c.readings[1:]
	}
	return now
}

func (c *scriptedClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
}

func newFixed(t *testing.T, clock timing.Clock, game loop.Game) *loop.Scheduler {
	t.Helper()
	s, err := loop.New(clock, game, loop.Config{
		TargetStep:      testStep,
		MaxElapsed:      500 * time.Millisecond,
		IsFixedTimeStep: true,
	})
	require.NoError(t, err)
	return s
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		config loop.Config
	}{
		{name: "zero target step", config: loop.Config{TargetStep: 0, MaxElapsed: time.Second}},
		{name: "negative target step", config: loop.Config{TargetStep: -time.Millisecond, MaxElapsed: time.Second}},
		{name: "zero max elapsed", config: loop.Config{TargetStep: testStep, MaxElapsed: 0}},
		{name: "step above max elapsed", config: loop.Config{TargetStep: time.Second, MaxElapsed: 500 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := loop.New(timing.NewManualClock(), &recorder{}, tt.config)
			assert.ErrorIs(t, err, loop.ErrInvalidConfiguration)
			assert.Nil(t, s)
		})
	}

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := loop.New(nil, &recorder{}, loop.DefaultConfig())
		assert.Error(t, err)

		_, err = loop.New(timing.NewManualClock(), nil, loop.DefaultConfig())
		assert.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	config := loop.DefaultConfig()
	assert.NoError(t, config.Validate())
	assert.True(t, config.IsFixedTimeStep)
	assert.Equal(t, 500*time.Millisecond, config.MaxElapsed)
	assert.Equal(t, timing.DefaultStep(), config.TargetStep)
}

func TestTick_FixedStepExactness(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	for i := 1; i <= 120; i++ {
		clock.Advance(testStep)
		require.NoError(t, s.Tick())

		assert.Len(t, game.simulated, i, "exactly one simulate per tick")
		assert.Equal(t, 0, s.FrameLag())
		assert.False(t, s.IsRunningSlowly())
	}

	for i, step := range game.simulated {
		assert.Equal(t, testStep, step.Elapsed)
		assert.Equal(t, testStep*time.Duration(i+1), step.Total)
		assert.False(t, step.IsRunningSlowly)
	}
	for _, step := range game.rendered {
		assert.Equal(t, testStep, step.Elapsed)
	}
	assert.Equal(t, 0, clock.SleepCount(), "no throttling when the clock keeps pace")
}

func TestTick_CatchUpIsBoundedByMaxElapsed(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	clock.Advance(10 * time.Second)
	require.NoError(t, s.Tick())

	assert.Len(t, game.simulated, 31)
	assert.Equal(t, 4*time.Millisecond, s.Accumulated())
	assert.Equal(t, 31*testStep, s.TotalSimulated())

	require.Len(t, game.rendered, 1)
	assert.Equal(t, 31*testStep, game.rendered[0].Elapsed)
}

func TestTick_RunningSlowlyHysteresis(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	// two steps per tick builds one unit of lag per tick
	for i := 1; i <= 5; i++ {
		clock.Advance(2 * testStep)
		require.NoError(t, s.Tick())

		assert.Equal(t, i, s.FrameLag())
		if i < 5 {
			assert.False(t, s.IsRunningSlowly(), "tick %d", i)
		}
	}
	assert.True(t, s.IsRunningSlowly(), "lag reached the threshold")

	// a clean tick repays one unit but does not clear the signal
	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Equal(t, 4, s.FrameLag())
	assert.True(t, s.IsRunningSlowly())

	last := game.simulated[len(game.simulated)-1]
	assert.True(t, last.IsRunningSlowly, "simulate sees the sticky signal")

	// the lag drains to zero over four more clean ticks, the signal clears on
	// the first tick that starts with no debt
	for i := 0; i < 4; i++ {
		clock.Advance(testStep)
		require.NoError(t, s.Tick())
		assert.True(t, s.IsRunningSlowly())
	}
	assert.Equal(t, 0, s.FrameLag())

	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.False(t, s.IsRunningSlowly())
	assert.Equal(t, 0, s.FrameLag())
}

func TestTick_SuppressDrawIsOneShot(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	game.onSimulate = func(step loop.Step) error {
		if len(game.simulated) == 1 {
			s.SuppressDraw()
			s.SuppressDraw()
		}
		return nil
	}

	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Empty(t, game.rendered, "render skipped on the suppressed tick")

	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Len(t, game.rendered, 1, "next tick renders normally")

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.SuppressedDraws)
	assert.Equal(t, uint64(1), stats.Renders)
	assert.Equal(t, uint64(2), stats.Ticks)
}

func TestTick_ThrottleSleepsUntilAStepIsDue(t *testing.T) {
	t.Run("whole millisecond remainder", func(t *testing.T) {
		clock := timing.NewManualClock()
		game := &recorder{}
		s := newFixed(t, clock, game)

		clock.Advance(5 * time.Millisecond)
		require.NoError(t, s.Tick())

		assert.Equal(t, 1, clock.SleepCount())
		assert.Equal(t, 11*time.Millisecond, clock.Slept())
		assert.Len(t, game.simulated, 1)
		assert.Equal(t, time.Duration(0), s.Accumulated())
	})

	t.Run("fractional step rounds sleep up", func(t *testing.T) {
		clock := timing.NewManualClock()
		game := &recorder{}
		s, err := loop.New(clock, game, loop.DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, s.Tick())

		assert.Equal(t, 17*time.Millisecond, clock.Slept())
		assert.Len(t, game.simulated, 1)
		assert.Equal(t, 17*time.Millisecond-timing.DefaultStep(), s.Accumulated())
	})

	t.Run("short sleeps are re-measured", func(t *testing.T) {
		clock := &scriptedClock{readings: []time.Duration{
			0,                     // construction
			2 * time.Millisecond,  // first measure
			9 * time.Millisecond,  // woke early
			20 * time.Millisecond, // second wake
		}}
		game := &recorder{}
		s := newFixed(t, clock, game)

		require.NoError(t, s.Tick())

		assert.Equal(t, []time.Duration{14 * time.Millisecond, 7 * time.Millisecond}, clock.sleeps)
		assert.Len(t, game.simulated, 1)
		assert.Equal(t, 4*time.Millisecond, s.Accumulated())
	})

	t.Run("variable mode never sleeps", func(t *testing.T) {
		clock := timing.NewManualClock()
		game := &recorder{}
		s := newFixed(t, clock, game)
		s.SetFixedTimeStep(false)

		clock.Advance(time.Millisecond)
		require.NoError(t, s.Tick())
		assert.Equal(t, 0, clock.SleepCount())
	})
}

func TestTick_VariableStep(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)
	s.SetFixedTimeStep(false)

	clock.Advance(7 * time.Millisecond)
	require.NoError(t, s.Tick())
	clock.Advance(23 * time.Millisecond)
	require.NoError(t, s.Tick())

	require.Len(t, game.simulated, 2)
	assert.Equal(t, loop.Step{Elapsed: 7 * time.Millisecond, Total: 7 * time.Millisecond}, game.simulated[0])
	assert.Equal(t, loop.Step{Elapsed: 23 * time.Millisecond, Total: 30 * time.Millisecond}, game.simulated[1])

	require.Len(t, game.rendered, 2)
	assert.Equal(t, 23*time.Millisecond, game.rendered[1].Elapsed)
	assert.Equal(t, time.Duration(0), s.Accumulated())

	t.Run("stall clamp applies too", func(t *testing.T) {
		clock.Advance(3 * time.Second)
		require.NoError(t, s.Tick())
		assert.Equal(t, 500*time.Millisecond, game.simulated[2].Elapsed)
	})
}

func TestTick_ModeIsReadOnceAtTickEntry(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	game.onSimulate = func(step loop.Step) error {
		s.SetFixedTimeStep(false)
		return nil
	}

	clock.Advance(2 * testStep)
	require.NoError(t, s.Tick())

	assert.Len(t, game.simulated, 2, "the tick finishes in fixed mode")
	assert.Equal(t, 2*testStep, game.rendered[0].Elapsed)
	assert.False(t, s.IsFixedTimeStep())

	game.onSimulate = nil
	clock.Advance(5 * time.Millisecond)
	require.NoError(t, s.Tick())
	assert.Equal(t, 5*time.Millisecond, game.simulated[2].Elapsed, "next tick is variable")
}

func TestTick_CallbackErrorsPropagateUnchanged(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("simulate", func(t *testing.T) {
		clock := timing.NewManualClock()
		game := &recorder{onSimulate: func(loop.Step) error { return errBoom }}
		s := newFixed(t, clock, game)

		clock.Advance(3 * testStep)
		err := s.Tick()
		assert.Equal(t, errBoom, err)
		assert.Len(t, game.simulated, 1, "no further steps after a failure")
		assert.Empty(t, game.rendered)
	})

	t.Run("render", func(t *testing.T) {
		clock := timing.NewManualClock()
		game := &gatedRecorder{open: true}
		game.onRender = func(loop.Step) error { return errBoom }
		s := newFixed(t, clock, game)

		clock.Advance(testStep)
		err := s.Tick()
		assert.Equal(t, errBoom, err)
		assert.Equal(t, 0, game.endDraw)
	})
}

func TestTick_DrawGate(t *testing.T) {
	clock := timing.NewManualClock()
	game := &gatedRecorder{}
	s := newFixed(t, clock, game)

	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, game.beginDraw)
	assert.Empty(t, game.rendered)
	assert.Equal(t, 0, game.endDraw)

	game.open = true
	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Len(t, game.rendered, 1)
	assert.Equal(t, 1, game.endDraw)

	t.Run("suppressed draws skip the gate", func(t *testing.T) {
		s.SuppressDraw()
		clock.Advance(testStep)
		require.NoError(t, s.Tick())
		assert.Equal(t, 2, game.beginDraw)
	})
}

func TestResetElapsedTime(t *testing.T) {
	clock := timing.NewManualClock()
	game := &recorder{}
	s := newFixed(t, clock, game)

	clock.Advance(testStep)
	require.NoError(t, s.Tick())

	// a long pause outside the loop
	clock.Advance(400 * time.Millisecond)
	s.ResetElapsedTime()
	assert.Equal(t, time.Duration(0), s.Accumulated())
	assert.Equal(t, time.Duration(0), s.Stats().LastStep.Elapsed)

	clock.Advance(testStep)
	require.NoError(t, s.Tick())
	assert.Len(t, game.simulated, 2, "no catch-up burst after reset")
	assert.Equal(t, 0, s.FrameLag())
}

func TestSetTargetStep(t *testing.T) {
	s := newFixed(t, timing.NewManualClock(), &recorder{})

	for _, step := range []time.Duration{0, -time.Millisecond, time.Second} {
		err := s.SetTargetStep(step)
		assert.ErrorIs(t, err, loop.ErrInvalidConfiguration, "step %s", step)
		assert.Equal(t, testStep, s.TargetStep(), "previous value retained")
	}

	require.NoError(t, s.SetTargetStep(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, s.TargetStep())
	assert.Equal(t, 500*time.Millisecond, s.MaxElapsed())
}

func TestTick_NonMonotonicClock(t *testing.T) {
	clock := &scriptedClock{readings: []time.Duration{
		100 * time.Millisecond,
		90 * time.Millisecond,
	}}
	game := &recorder{}
	s := newFixed(t, clock, game)
	s.SetFixedTimeStep(false)

	require.NoError(t, s.Tick())
	assert.Equal(t, time.Duration(0), game.simulated[0].Elapsed)
	assert.Equal(t, time.Duration(0), s.Accumulated())
}

func TestGameFuncs(t *testing.T) {
	var simulated, rendered int
	game := loop.GameFuncs{
		SimulateFn: func(loop.Step) error { simulated++; return nil },
		RenderFn:   func(loop.Step) error { rendered++; return nil },
	}

	clock := timing.NewManualClock()
	s := newFixed(t, clock, game)
	clock.Advance(3 * testStep)
	require.NoError(t, s.Tick())

	assert.Equal(t, 3, simulated)
	assert.Equal(t, 1, rendered)

	assert.NoError(t, loop.GameFuncs{}.Simulate(loop.Step{}))
	assert.NoError(t, loop.GameFuncs{}.Render(loop.Step{}))
}

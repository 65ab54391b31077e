package loop

import "time"

// Step describes the slice of simulated time handed to a callback.
type Step struct {
	// Elapsed is the time covered by this invocation. For Simulate in fixed
	// mode it is always the target step; for Render it is the total time
	// simulated during the tick.
	Elapsed time.Duration

	// Total is the simulated time accumulated since the scheduler started.
	Total time.Duration

	// IsRunningSlowly is set while the scheduler has been catching up for
	// several ticks in a row.
	IsRunningSlowly bool
}

// Game is driven by the Scheduler. Errors returned from either method are
// handed back to the Tick caller unchanged.
type Game interface {
	Simulate(step Step) error
	Render(step Step) error
}

// DrawGate may optionally be implemented by a Game to veto rendering.
// Render is only called when BeginDraw returns true, and EndDraw follows a
// successful Render.
type DrawGate interface {
	BeginDraw() bool
	EndDraw()
}

// GameFuncs adapts plain functions to the Game interface. Nil functions are
// treated as no-ops.
type GameFuncs struct {
	SimulateFn func(step Step) error
	RenderFn   func(step Step) error
}

func (g GameFuncs) Simulate(step Step) error {
	if g.SimulateFn == nil {
		return nil
	}
	return g.SimulateFn(step)
}

func (g GameFuncs) Render(step Step) error {
	if g.RenderFn == nil {
		return nil
	}
	return g.RenderFn(step)
}

var _ Game = GameFuncs{}

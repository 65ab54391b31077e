package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/input"
	"github.com/valerio/go-pacer/pacer/input/action"
	"github.com/valerio/go-pacer/pacer/input/event"
	"github.com/valerio/go-pacer/pacer/loop"
	"github.com/valerio/go-pacer/pacer/sampler"
	"github.com/valerio/go-pacer/pacer/timing"
)

// Config holds everything needed to assemble an App.
type Config struct {
	Loop         loop.Config
	SamplerDepth int
	Bodies       int

	// SimulateCost and RenderCost are busy time added to every callback,
	// used to provoke catch-up behaviour.
	SimulateCost time.Duration
	RenderCost   time.Duration

	// RateStep is the change in Hz applied by the rate actions, LoadStep
	// the change applied to SimulateCost by the load actions.
	RateStep float64
	LoadStep time.Duration

	// PausePoll is how long the run loop sleeps between backend polls while
	// paused.
	PausePoll time.Duration

	Backend backend.Config
}

func DefaultConfig() Config {
	return Config{
		Loop:         loop.DefaultConfig(),
		SamplerDepth: sampler.DefaultDepth,
		Bodies:       8,
		RateStep:     5,
		LoadStep:     2 * time.Millisecond,
		PausePoll:    50 * time.Millisecond,
		Backend: backend.Config{
			Title:       "pacer",
			ShowOverlay: true,
			LogLevel:    slog.LevelInfo,
		},
	}
}

// Publisher receives every presented frame, for example to serve it over
// HTTP.
type Publisher interface {
	Publish(frame *backend.Frame)
}

type Option = func(*App)

func WithPublisher(p Publisher) Option {
	return func(a *App) {
		a.publishers = append(a.publishers, p)
	}
}

// WithDebounce changes the input debounce window.
func WithDebounce(d time.Duration) Option {
	return func(a *App) {
		a.input.SetDebounce(d)
	}
}

// App drives a demo world through a loop.Scheduler and presents every
// rendered frame on a backend.
type App struct {
	config  Config
	clock   timing.Clock
	backend backend.Backend

	scheduler *loop.Scheduler
	input     *input.Manager
	world     *World

	// frames measures the interval between renders, present the time spent
	// in backend.Update.
	frames        *sampler.Sampler
	present       *sampler.Sampler
	framesStarted bool

	publishers []Publisher

	running      bool
	paused       bool
	frameCount   uint64
	simulateCost time.Duration
	renderCost   time.Duration
	lastStep     loop.Step
	pending      []backend.InputEvent
}

// New assembles an App. The scheduler reads time from clock, which is also
// used to burn the synthetic costs.
func New(config Config, clock timing.Clock, be backend.Backend, opts ...Option) (*App, error) {
	if clock == nil {
		return nil, errors.New("app requires a clock")
	}
	if be == nil {
		return nil, errors.New("app requires a backend")
	}

	frames, err := sampler.New(clock, config.SamplerDepth)
	if err != nil {
		return nil, fmt.Errorf("frame sampler: %w", err)
	}
	present, err := sampler.New(clock, config.SamplerDepth)
	if err != nil {
		return nil, fmt.Errorf("present sampler: %w", err)
	}

	a := &App{
		config:       config,
		clock:        clock,
		backend:      be,
		input:        input.NewManager(clock),
		world:        NewWorld(config.Bodies),
		frames:       frames,
		present:      present,
		simulateCost: max(0, config.SimulateCost),
		renderCost:   max(0, config.RenderCost),
	}

	a.scheduler, err = loop.New(clock, a, config.Loop)
	if err != nil {
		return nil, err
	}

	a.registerActions()
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Simulate advances the world by one step.
func (a *App) Simulate(step loop.Step) error {
	a.world.Step(step.Elapsed)
	if a.simulateCost > 0 {
		a.clock.Sleep(a.simulateCost)
	}
	return nil
}

// Render samples the frame interval and presents the frame on the backend.
func (a *App) Render(step loop.Step) error {
	if a.framesStarted {
		a.frames.EndFrame()
	}
	a.frames.BeginFrame()
	a.framesStarted = true

	if a.renderCost > 0 {
		a.clock.Sleep(a.renderCost)
	}

	a.lastStep = step
	return a.show(a.buildFrame(step))
}

func (a *App) show(frame *backend.Frame) error {
	a.present.BeginFrame()
	events, err := a.backend.Update(frame)
	a.present.EndFrame()
	if err != nil {
		return fmt.Errorf("backend update: %w", err)
	}

	for _, p := range a.publishers {
		p.Publish(frame)
	}
	a.pending = append(a.pending, events...)
	return nil
}

func (a *App) buildFrame(step loop.Step) *backend.Frame {
	a.frameCount++
	return &backend.Frame{
		Number:       a.frameCount,
		Paused:       a.paused,
		Step:         step,
		Scheduler:    a.scheduler.Stats(),
		Frames:       a.frames.Snapshot(),
		Present:      a.present.Snapshot(),
		History:      a.frames.Samples(),
		SimulateCost: a.simulateCost,
		RenderCost:   a.renderCost,
		Bodies:       a.world.Bodies(),
	}
}

// Run initializes the backend and ticks the scheduler until a quit action
// arrives, ctx is done, or a tick fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.backend.Init(a.config.Backend); err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	defer func() {
		if err := a.backend.Cleanup(); err != nil {
			slog.Error("Backend cleanup failed", "error", err)
		}
	}()

	slog.Info("Starting loop",
		"target_step", a.scheduler.TargetStep(),
		"fixed", a.scheduler.IsFixedTimeStep(),
		"max_elapsed", a.scheduler.MaxElapsed(),
		"depth", a.frames.Depth())

	// time spent in Init must not count as a stall
	a.scheduler.ResetElapsedTime()
	a.running = true

	for a.running {
		select {
		case <-ctx.Done():
			slog.Info("Stopping loop", "reason", context.Cause(ctx))
			return nil
		default:
		}

		if a.paused {
			if err := a.idle(); err != nil {
				return err
			}
			continue
		}

		if err := a.scheduler.Tick(); err != nil {
			return fmt.Errorf("tick %d: %w", a.scheduler.Stats().Ticks, err)
		}
		a.dispatch()
	}

	stats := a.scheduler.Stats()
	slog.Info("Loop finished",
		"ticks", stats.Ticks,
		"simulations", stats.Simulations,
		"renders", stats.Renders,
		"simulated", stats.TotalSimulated)
	return nil
}

// idle keeps the backend responsive while the scheduler is paused.
func (a *App) idle() error {
	if err := a.show(a.buildFrame(a.lastStep)); err != nil {
		return err
	}
	a.dispatch()
	if a.paused && a.running {
		a.clock.Sleep(a.config.PausePoll)
	}
	return nil
}

func (a *App) dispatch() {
	events := a.pending
	a.pending = nil
	a.input.Dispatch(events)
}

func (a *App) registerActions() {
	on := func(act action.Action, fn func()) {
		a.input.On(act, event.Press, fn)
	}

	on(action.Quit, func() {
		slog.Info("Quit requested")
		a.running = false
	})
	on(action.PauseToggle, a.togglePause)
	on(action.FixedStepToggle, func() {
		fixed := !a.scheduler.IsFixedTimeStep()
		a.scheduler.SetFixedTimeStep(fixed)
		slog.Info("Step mode changed", "fixed", fixed)
	})
	on(action.RateIncrease, func() { a.changeRate(a.config.RateStep) })
	on(action.RateDecrease, func() { a.changeRate(-a.config.RateStep) })
	on(action.SuppressDraw, a.scheduler.SuppressDraw)
	on(action.ResetElapsed, func() {
		a.scheduler.ResetElapsedTime()
		slog.Info("Elapsed time reset")
	})
	on(action.DepthIncrease, func() { a.resizeSamplers(a.frames.Depth() * 2) })
	on(action.DepthDecrease, func() { a.resizeSamplers(a.frames.Depth() / 2) })
	on(action.SamplerClear, func() {
		a.frames.Clear()
		a.present.Clear()
		a.framesStarted = false
		slog.Info("Samplers cleared")
	})
	on(action.LoadIncrease, func() { a.changeLoad(a.config.LoadStep) })
	on(action.LoadDecrease, func() { a.changeLoad(-a.config.LoadStep) })

	if handler, ok := a.backend.(backend.ActionHandler); ok {
		for _, act := range []action.Action{action.LogLevelIncrease, action.LogLevelDecrease, action.OverlayToggle} {
			act := act
			on(act, func() { handler.HandleAction(act) })
		}
	}
}

func (a *App) togglePause() {
	a.paused = !a.paused
	if a.paused {
		slog.Info("Paused")
		return
	}

	// the pause must not be caught up on, nor show up as one long frame
	a.scheduler.ResetElapsedTime()
	a.framesStarted = false
	slog.Info("Resumed")
}

func (a *App) changeRate(delta float64) {
	rate := timing.RateForStep(a.scheduler.TargetStep()) + delta
	if rate <= 0 {
		slog.Warn("Rate change ignored", "rate", rate)
		return
	}
	if err := a.scheduler.SetTargetStep(timing.StepForRate(rate)); err != nil {
		slog.Warn("Rate change rejected", "rate", rate, "error", err)
		return
	}
	slog.Info("Target rate changed", "rate", rate, "step", a.scheduler.TargetStep())
}

func (a *App) resizeSamplers(depth int) {
	depth = max(1, depth)
	for _, s := range []*sampler.Sampler{a.frames, a.present} {
		if err := s.Resize(depth); err != nil {
			slog.Warn("Sampler resize rejected", "depth", depth, "error", err)
			return
		}
	}
	slog.Info("Sampler depth changed", "depth", depth)
}

func (a *App) changeLoad(delta time.Duration) {
	a.simulateCost = max(0, a.simulateCost+delta)
	slog.Info("Simulate cost changed", "cost", a.simulateCost)
}

// Scheduler exposes the underlying scheduler, mainly for tests and tools.
func (a *App) Scheduler() *loop.Scheduler {
	return a.scheduler
}

func (a *App) FrameSampler() *sampler.Sampler {
	return a.frames
}

func (a *App) Paused() bool {
	return a.paused
}

func (a *App) SimulateCost() time.Duration {
	return a.simulateCost
}

var _ loop.Game = (*App)(nil)

package backend

import (
	"log/slog"
	"time"

	"github.com/valerio/go-pacer/pacer/input/action"
	"github.com/valerio/go-pacer/pacer/input/event"
	"github.com/valerio/go-pacer/pacer/loop"
	"github.com/valerio/go-pacer/pacer/sampler"
)

// Backend represents a complete presentation platform (rendering + input).
// Backends are responsible for:
// - Presenting the frame statistics to their specific output (terminal, logs)
// - Translating platform-specific input events to Actions
// - Handling backend-specific features (overlay, log filter)
type Backend interface {
	// Init configures the backend with the provided configuration.
	// This is a required step before calling Update.
	Init(config Config) error

	// Update presents the frame and returns the input collected since the
	// previous call. Backends should:
	// 1. Poll for platform-specific events (keyboard, resize, etc.)
	// 2. Translate events to Actions
	// 3. Present the provided frame
	Update(frame *Frame) ([]InputEvent, error)

	// Cleanup resources when shutting down
	Cleanup() error
}

// ActionHandler may be implemented by backends that own some actions
// themselves, such as the log filter of the terminal backend.
type ActionHandler interface {
	HandleAction(act action.Action)
}

// Config holds configuration for backends
type Config struct {
	Title       string
	ShowOverlay bool       // Backends may ignore unsupported features
	LogLevel    slog.Level // Initial filter for backends that display logs
}

// InputEvent is an action produced by a backend
type InputEvent struct {
	Action action.Action
	Type   event.Type
}

// Body is a simulated object, positioned in the unit square.
type Body struct {
	X, Y float64
}

// Frame is everything a backend needs to present one render.
type Frame struct {
	Number uint64
	Paused bool

	// Step is the value handed to the Render callback.
	Step      loop.Step
	Scheduler loop.Stats

	// Frames samples the time between renders, Present samples how long
	// previous Update calls took.
	Frames  sampler.Snapshot
	Present sampler.Snapshot

	// History is the frame sampler window, oldest first.
	History []time.Duration

	SimulateCost time.Duration
	RenderCost   time.Duration

	Bodies []Body
}

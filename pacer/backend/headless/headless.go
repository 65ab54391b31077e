package headless

import (
	"log/slog"

	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/input/action"
	"github.com/valerio/go-pacer/pacer/input/event"
)

// DefaultProgressInterval logs roughly once a second at 60 renders per second.
const DefaultProgressInterval = 60

// Backend implements the Backend interface for automated runs and benchmarks
type Backend struct {
	config           backend.Config
	frameCount       int
	maxFrames        int
	progressInterval int
	last             backend.Frame
}

// New creates a headless backend that requests a quit after maxFrames
// renders. A maxFrames of zero runs until the loop is stopped some other way.
func New(maxFrames, progressInterval int) *Backend {
	if progressInterval <= 0 {
		progressInterval = DefaultProgressInterval
	}
	return &Backend{
		maxFrames:        maxFrames,
		progressInterval: progressInterval,
	}
}

func (h *Backend) Init(config backend.Config) error {
	h.config = config

	slog.Info("Running headless mode",
		"title", config.Title,
		"frames", h.maxFrames,
		"progress_interval", h.progressInterval)

	return nil
}

// Update records the frame and logs progress periodically
func (h *Backend) Update(frame *backend.Frame) ([]backend.InputEvent, error) {
	var events []backend.InputEvent

	h.frameCount++
	h.last = *frame

	if h.frameCount%h.progressInterval == 0 {
		slog.Info("Frame progress",
			"completed", h.frameCount,
			"total", h.maxFrames,
			"fps", frame.Frames.Frequency.Average,
			"simulated", frame.Scheduler.TotalSimulated,
			"running_slowly", frame.Scheduler.IsRunningSlowly)
	}

	if h.maxFrames > 0 && h.frameCount >= h.maxFrames {
		slog.Info("Headless execution completed",
			"frames", h.frameCount,
			"ticks", frame.Scheduler.Ticks,
			"simulations", frame.Scheduler.Simulations,
			"suppressed_draws", frame.Scheduler.SuppressedDraws,
			"avg_frame", frame.Frames.Duration.Average,
			"max_frame", frame.Frames.Duration.Maximum)

		// Signal completion via quit event
		events = append(events, backend.InputEvent{Action: action.Quit, Type: event.Press})
	}

	return events, nil
}

func (h *Backend) Cleanup() error {
	return nil
}

// FrameCount returns the number of frames presented so far.
func (h *Backend) FrameCount() int {
	return h.frameCount
}

// LastFrame returns a copy of the most recently presented frame.
func (h *Backend) LastFrame() backend.Frame {
	return h.last
}

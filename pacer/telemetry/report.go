package telemetry

import (
	"time"

	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/sampler"
	"github.com/valerio/go-pacer/pacer/timing"
)

// Report is the JSON view of a rendered frame. Durations are in
// milliseconds and rates in Hz.
type Report struct {
	Frame  uint64 `json:"frame"`
	Paused bool   `json:"paused"`

	Mode          string  `json:"mode"`
	TargetStepMs  float64 `json:"target_step_ms"`
	TargetRateHz  float64 `json:"target_rate_hz"`
	MaxElapsedMs  float64 `json:"max_elapsed_ms"`
	PendingMs     float64 `json:"pending_ms"`
	SimulatedMs   float64 `json:"simulated_ms"`
	FrameLag      int     `json:"frame_lag"`
	RunningSlowly bool    `json:"running_slowly"`

	Ticks           uint64 `json:"ticks"`
	Simulations     uint64 `json:"simulations"`
	Renders         uint64 `json:"renders"`
	SuppressedDraws uint64 `json:"suppressed_draws"`

	Frames  SamplerReport `json:"frames"`
	Present SamplerReport `json:"present"`

	SimulateCostMs float64 `json:"simulate_cost_ms"`
	RenderCostMs   float64 `json:"render_cost_ms"`
}

// SamplerReport is the JSON view of a sampler snapshot.
type SamplerReport struct {
	Depth   int    `json:"depth"`
	Window  int    `json:"window"`
	Samples uint64 `json:"samples"`

	CurrentMs float64 `json:"current_ms"`
	MinMs     float64 `json:"min_ms"`
	MaxMs     float64 `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`

	CurrentHz float64 `json:"current_hz"`
	MinHz     float64 `json:"min_hz"`
	MaxHz     float64 `json:"max_hz"`
	AvgHz     float64 `json:"avg_hz"`
}

// NewReport flattens a frame into a Report.
func NewReport(frame *backend.Frame) Report {
	sched := frame.Scheduler

	mode := "variable"
	if sched.IsFixedTimeStep {
		mode = "fixed"
	}

	return Report{
		Frame:           frame.Number,
		Paused:          frame.Paused,
		Mode:            mode,
		TargetStepMs:    millis(sched.TargetStep),
		TargetRateHz:    timing.RateForStep(sched.TargetStep),
		MaxElapsedMs:    millis(sched.MaxElapsed),
		PendingMs:       millis(sched.Accumulated),
		SimulatedMs:     millis(sched.TotalSimulated),
		FrameLag:        sched.FrameLag,
		RunningSlowly:   sched.IsRunningSlowly,
		Ticks:           sched.Ticks,
		Simulations:     sched.Simulations,
		Renders:         sched.Renders,
		SuppressedDraws: sched.SuppressedDraws,
		Frames:          newSamplerReport(frame.Frames),
		Present:         newSamplerReport(frame.Present),
		SimulateCostMs:  millis(frame.SimulateCost),
		RenderCostMs:    millis(frame.RenderCost),
	}
}

func newSamplerReport(s sampler.Snapshot) SamplerReport {
	return SamplerReport{
		Depth:     s.Depth,
		Window:    s.Window,
		Samples:   s.TotalSamples,
		CurrentMs: millis(s.Duration.Current),
		MinMs:     millis(s.Duration.Minimum),
		MaxMs:     millis(s.Duration.Maximum),
		AvgMs:     millis(s.Duration.Average),
		CurrentHz: s.Frequency.Current,
		MinHz:     s.Frequency.Minimum,
		MaxHz:     s.Frequency.Maximum,
		AvgHz:     s.Frequency.Average,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

package sampler

import (
	"errors"
	"fmt"
	"time"

	"github.com/valerio/go-pacer/pacer/timing"
)

// ErrInvalidDepth is returned when a sampler is asked to hold no samples.
var ErrInvalidDepth = errors.New("sampler depth must be at least 1")

// DefaultDepth keeps roughly one second of history at 60 frames per second.
const DefaultDepth = 60

// DurationRange holds statistics in the time domain.
type DurationRange struct {
	Current time.Duration
	Minimum time.Duration
	Maximum time.Duration
	Average time.Duration // over the sample window
	Elapsed time.Duration // sum of every sample ever recorded
}

// FrequencyRange holds statistics in the frequency domain, in Hz.
type FrequencyRange struct {
	Current float64
	Minimum float64
	Maximum float64
	Average float64 // window size divided by the windowed duration
	Frames  uint64  // number of samples ever recorded
}

// Sampler keeps a ring buffer of recent frame durations and derives running
// statistics from it. The windowed sum is maintained incrementally, so each
// sample costs O(1) regardless of depth.
type Sampler struct {
	clock   timing.Clock
	started time.Duration

	samples      []time.Duration
	writeIndex   int
	filled       int // meaningful samples in the window, at most len(samples)
	totalSamples uint64
	accumulator  time.Duration

	duration      DurationRange
	frequency     FrequencyRange
	frequencySeen bool
}

// New creates a sampler timing frames with clock and keeping the last depth
// samples.
func New(clock timing.Clock, depth int) (*Sampler, error) {
	if clock == nil {
		return nil, errors.New("sampler requires a clock")
	}
	if depth < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}

	return &Sampler{
		clock:   clock,
		samples: make([]time.Duration, depth),
	}, nil
}

// BeginFrame marks the start of a measured unit of work.
func (s *Sampler) BeginFrame() {
	s.started = s.clock.Now()
}

// EndFrame records the time since the matching BeginFrame and returns it.
func (s *Sampler) EndFrame() time.Duration {
	return s.AddSample(s.clock.Now() - s.started)
}

// AddSample records a duration measured elsewhere. Negative durations are
// recorded as zero. The recorded value is returned.
func (s *Sampler) AddSample(d time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}

	s.accumulator -= s.samples[s.writeIndex]
	s.samples[s.writeIndex] = d
	s.accumulator += d
	s.totalSamples++
	s.writeIndex = (s.writeIndex + 1) % len(s.samples)
	if s.filled < len(s.samples) {
		s.filled++
	}

	s.updateDuration(d)
	s.updateFrequency(d)

	return d
}

func (s *Sampler) updateDuration(d time.Duration) {
	r := &s.duration
	first := s.totalSamples == 1

	r.Current = d
	if first || d < r.Minimum {
		r.Minimum = d
	}
	if first || d > r.Maximum {
		r.Maximum = d
	}
	r.Elapsed += d
	r.Average = s.accumulator / time.Duration(s.filled)
}

func (s *Sampler) updateFrequency(d time.Duration) {
	r := &s.frequency
	r.Frames++

	// a zero length frame has no meaningful rate, keep the previous one
	if d > 0 {
		r.Current = float64(time.Second) / float64(d)
		if !s.frequencySeen || r.Current < r.Minimum {
			r.Minimum = r.Current
		}
		if !s.frequencySeen || r.Current > r.Maximum {
			r.Maximum = r.Current
		}
		s.frequencySeen = true
	}

	s.refreshFrequencyAverage()
}

func (s *Sampler) refreshFrequencyAverage() {
	if s.accumulator > 0 {
		s.frequency.Average = float64(s.filled) / s.accumulator.Seconds()
	}
}

// Clear drops every sample and statistic. The depth is kept.
func (s *Sampler) Clear() {
	clear(s.samples)
	s.writeIndex = 0
	s.filled = 0
	s.totalSamples = 0
	s.accumulator = 0
	s.duration = DurationRange{}
	s.frequency = FrequencyRange{}
	s.frequencySeen = false
}

// Resize changes the window to depth samples, keeping the most recent ones.
// The windowed sum is recomputed from the surviving samples.
func (s *Sampler) Resize(depth int) error {
	if depth < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, depth)
	}

	recent := s.Samples()
	if len(recent) > depth {
		recent = recent[len(recent)-depth:]
	}

	s.samples = make([]time.Duration, depth)
	copy(s.samples, recent)
	s.filled = len(recent)
	s.writeIndex = s.filled % depth

	s.accumulator = 0
	for _, d := range recent {
		s.accumulator += d
	}

	s.duration.Average = 0
	s.frequency.Average = 0
	if s.filled > 0 {
		s.duration.Average = s.accumulator / time.Duration(s.filled)
		s.refreshFrequencyAverage()
	}

	return nil
}

// Samples returns a copy of the window, oldest first.
func (s *Sampler) Samples() []time.Duration {
	depth := len(s.samples)
	start := (s.writeIndex - s.filled + depth) % depth

	out := make([]time.Duration, s.filled)
	for i := range out {
		out[i] = s.samples[(start+i)%depth]
	}
	return out
}

func (s *Sampler) Depth() int {
	return len(s.samples)
}

// Window returns how many samples currently contribute to the averages.
func (s *Sampler) Window() int {
	return s.filled
}

func (s *Sampler) TotalSamples() uint64 {
	return s.totalSamples
}

// Accumulator returns the sum of the samples in the window.
func (s *Sampler) Accumulator() time.Duration {
	return s.accumulator
}

func (s *Sampler) Duration() DurationRange {
	return s.duration
}

func (s *Sampler) Frequency() FrequencyRange {
	return s.frequency
}

// Snapshot is a copy of the sampler statistics.
type Snapshot struct {
	Depth        int
	Window       int
	TotalSamples uint64
	Duration     DurationRange
	Frequency    FrequencyRange
}

func (s *Sampler) Snapshot() Snapshot {
	return Snapshot{
		Depth:        len(s.samples),
		Window:       s.filled,
		TotalSamples: s.totalSamples,
		Duration:     s.duration,
		Frequency:    s.frequency,
	}
}

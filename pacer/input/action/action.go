package action

// Action represents a control the pacer demo reacts to
type Action int

const (
	// Loop controls
	PauseToggle Action = iota
	FixedStepToggle
	RateIncrease
	RateDecrease
	SuppressDraw
	ResetElapsed

	// Sampler controls
	DepthIncrease
	DepthDecrease
	SamplerClear

	// Synthetic workload
	LoadIncrease
	LoadDecrease

	// Debug controls
	LogLevelIncrease
	LogLevelDecrease
	OverlayToggle

	Quit
)

var names = map[Action]string{
	PauseToggle:      "pause",
	FixedStepToggle:  "fixed-step",
	RateIncrease:     "rate+",
	RateDecrease:     "rate-",
	SuppressDraw:     "suppress-draw",
	ResetElapsed:     "reset-elapsed",
	DepthIncrease:    "depth+",
	DepthDecrease:    "depth-",
	SamplerClear:     "sampler-clear",
	LoadIncrease:     "load+",
	LoadDecrease:     "load-",
	LogLevelIncrease: "log+",
	LogLevelDecrease: "log-",
	OverlayToggle:    "overlay",
	Quit:             "quit",
}

func (a Action) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	return "unknown"
}

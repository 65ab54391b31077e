package input

import "github.com/valerio/go-pacer/pacer/input/action"

// DefaultKeyMap provides default key mappings that work across backends.
// Backends can use these mappings as a base and override/extend as needed.
var DefaultKeyMap = map[string]action.Action{
	// Loop controls
	"Space": action.PauseToggle,
	"p":     action.PauseToggle, // Alternative key
	"f":     action.FixedStepToggle,
	"Up":    action.RateIncrease,
	"Down":  action.RateDecrease,
	"s":     action.SuppressDraw,
	"r":     action.ResetElapsed,

	// Sampler controls
	"Right": action.DepthIncrease,
	"Left":  action.DepthDecrease,
	"c":     action.SamplerClear,

	// Synthetic workload
	"l": action.LoadIncrease,
	"k": action.LoadDecrease,

	// Debug controls
	"+":   action.LogLevelIncrease,
	"=":   action.LogLevelIncrease, // Alternative without shift
	"-":   action.LogLevelDecrease,
	"_":   action.LogLevelDecrease, // Alternative with shift
	"F10": action.OverlayToggle,
	"o":   action.OverlayToggle,

	"Escape": action.Quit,
	"q":      action.Quit,
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (action.Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}

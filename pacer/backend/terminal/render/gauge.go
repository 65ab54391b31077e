package render

import (
	"strings"
	"time"
)

// sparkLevels are the block characters used for sparklines, lowest first
var sparkLevels = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline draws the most recent width samples, scaled against ceiling.
// Samples above the ceiling are drawn as full blocks.
func Sparkline(samples []time.Duration, ceiling time.Duration, width int) string {
	if width <= 0 || len(samples) == 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	if ceiling <= 0 {
		for _, s := range samples {
			ceiling = max(ceiling, s)
		}
	}

	var sb strings.Builder
	top := len(sparkLevels) - 1
	for _, s := range samples {
		level := 0
		if ceiling > 0 {
			level = int(int64(s) * int64(top) / int64(ceiling))
		}
		sb.WriteRune(sparkLevels[min(max(level, 0), top)])
	}
	return sb.String()
}

// Gauge draws a horizontal bar filled to fraction, clamped to [0, 1].
func Gauge(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Truncate shortens text to width runes, marking the cut with an ellipsis.
func Truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width > 3 {
		return string(runes[:width-3]) + "..."
	}
	if width > 0 {
		return string(runes[:width])
	}
	return ""
}

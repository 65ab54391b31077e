package app

import (
	"math"
	"time"

	"github.com/valerio/go-pacer/pacer/backend"
)

type body struct {
	x, y   float64
	vx, vy float64 // units per second
}

// World is a set of bodies bouncing inside the unit square. It is advanced
// by Simulate and carries no timing of its own, so two worlds stepped with
// the same durations end up identical.
type World struct {
	bodies []body
}

// NewWorld spreads n bodies on a circle, each moving outwards at a slightly
// different speed.
func NewWorld(n int) *World {
	w := &World{bodies: make([]body, max(0, n))}
	for i := range w.bodies {
		angle := 2 * math.Pi * float64(i) / float64(n)
		speed := 0.2 + 0.05*float64(i%5)
		w.bodies[i] = body{
			x:  0.5 + 0.25*math.Cos(angle),
			y:  0.5 + 0.25*math.Sin(angle),
			vx: speed * math.Cos(angle),
			vy: speed * math.Sin(angle),
		}
	}
	return w
}

// Step advances every body by dt, reflecting off the walls.
func (w *World) Step(dt time.Duration) {
	secs := dt.Seconds()
	for i := range w.bodies {
		b := &w.bodies[i]
		b.x, b.vx = bounce(b.x+b.vx*secs, b.vx)
		b.y, b.vy = bounce(b.y+b.vy*secs, b.vy)
	}
}

// bounce folds a coordinate back into [0, 1], flipping the velocity on
// every reflection.
func bounce(pos, vel float64) (float64, float64) {
	for pos < 0 || pos > 1 {
		if pos < 0 {
			pos = -pos
		} else {
			pos = 2 - pos
		}
		vel = -vel
	}
	return pos, vel
}

// Bodies returns the current positions.
func (w *World) Bodies() []backend.Body {
	out := make([]backend.Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = backend.Body{X: b.x, Y: b.y}
	}
	return out
}

func (w *World) Len() int {
	return len(w.bodies)
}

package input

import (
	"time"

	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/input/action"
	"github.com/valerio/go-pacer/pacer/input/event"
	"github.com/valerio/go-pacer/pacer/timing"
)

// DefaultDebounce is the minimum time between two debounced events of the
// same action and type.
const DefaultDebounce = 150 * time.Millisecond

// Manager handles input actions and their associated callbacks
type Manager struct {
	clock         timing.Clock
	debounce      time.Duration
	handlers      map[action.Action]map[event.Type][]func()
	lastTriggered map[action.Action]map[event.Type]time.Duration
}

func NewManager(clock timing.Clock) *Manager {
	return &Manager{
		clock:         clock,
		debounce:      DefaultDebounce,
		handlers:      make(map[action.Action]map[event.Type][]func()),
		lastTriggered: make(map[action.Action]map[event.Type]time.Duration),
	}
}

// SetDebounce changes the debounce window, zero disables debouncing.
func (m *Manager) SetDebounce(d time.Duration) {
	m.debounce = max(0, d)
}

// On registers a callback for a specific action and event type
func (m *Manager) On(act action.Action, evt event.Type, callback func()) {
	if m.handlers[act] == nil {
		m.handlers[act] = make(map[event.Type][]func())
	}
	m.handlers[act][evt] = append(m.handlers[act][evt], callback)
}

// Trigger runs the callbacks registered for act and evt. It returns false
// when the event was debounced.
func (m *Manager) Trigger(act action.Action, evt event.Type) bool {
	if (evt == event.Press || evt == event.Release) && m.debounce > 0 {
		now := m.clock.Now()
		if m.lastTriggered[act] == nil {
			m.lastTriggered[act] = make(map[event.Type]time.Duration)
		}
		if last, seen := m.lastTriggered[act][evt]; seen && now-last < m.debounce {
			return false
		}
		m.lastTriggered[act][evt] = now
	}

	for _, callback := range m.handlers[act][evt] {
		callback()
	}
	return true
}

// Dispatch triggers every event in order.
func (m *Manager) Dispatch(events []backend.InputEvent) {
	for _, evt := range events {
		m.Trigger(evt.Action, evt.Type)
	}
}

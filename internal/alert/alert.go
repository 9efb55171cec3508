// Package alert carries user-visible, non-fatal notifications from the
// audio core out to whatever surface is presenting them.
package alert

import "sync"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Alert struct {
	Severity Severity
	Message  string
}

// Notifier receives alerts raised by the engine and mixer. Implementations
// must not block.
type Notifier interface {
	Notify(a Alert)
}

// Hub is a buffered fan-in Notifier. The UI drains it with Next or Chan.
type Hub struct {
	mu sync.Mutex
	ch chan Alert
}

func NewHub() *Hub {
	return &Hub{ch: make(chan Alert, 16)}
}

func (h *Hub) Notify(a Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case h.ch <- a:
	default:
		// Drop the oldest alert rather than block an audio-path caller.
		select {
		case <-h.ch:
		default:
		}
		select {
		case h.ch <- a:
		default:
		}
	}
}

// Chan exposes the alert stream for select-based consumers.
func (h *Hub) Chan() <-chan Alert {
	return h.ch
}

// Next returns the oldest pending alert, if any.
func (h *Hub) Next() (Alert, bool) {
	select {
	case a := <-h.ch:
		return a, true
	default:
		return Alert{}, false
	}
}

// Discard is a Notifier that drops everything. Useful in tests and for
// headless runs.
type Discard struct{}

func (Discard) Notify(Alert) {}

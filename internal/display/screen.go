package display

import (
	"maps"
	"sync/atomic"
)

// Field names written by StatusPanel.
const (
	FieldWiFi       = "wifi"
	FieldUpdate     = "update"
	FieldLastAction = "last_action"
	FieldInsights   = "insights"
)

// Frame is an immutable rendered image of the screen.
type Frame map[string]string

// Screen is a headless surface made of named text fields. Set and the
// Surface methods belong to the loop goroutine; Snapshot and Press may be
// called from anywhere.
type Screen struct {
	fields  map[string]string
	dirty   bool
	renders int

	last    atomic.Pointer[Frame]
	buttons chan string
	// OnButton handles presses during PollInput.
	OnButton func(name string)
}

func NewScreen() *Screen {
	s := &Screen{fields: map[string]string{}, buttons: make(chan string, 8)}
	empty := Frame{}
	s.last.Store(&empty)
	return s
}

// Set changes a field; the change shows on the next Redraw.
func (s *Screen) Set(field, value string) {
	if s.fields[field] == value {
		return
	}
	s.fields[field] = value
	s.dirty = true
}

// Field reads a field as currently set (loop goroutine only).
func (s *Screen) Field(field string) string { return s.fields[field] }

func (s *Screen) Redraw() {
	if !s.dirty {
		return
	}
	f := Frame(maps.Clone(s.fields))
	s.last.Store(&f)
	s.renders++
	s.dirty = false
}

func (s *Screen) PollInput() {
	for {
		select {
		case b := <-s.buttons:
			if s.OnButton != nil {
				s.OnButton(b)
			}
		default:
			return
		}
	}
}

// Press queues a button press. Presses beyond the buffer are ignored.
func (s *Screen) Press(name string) bool {
	select {
	case s.buttons <- name:
		return true
	default:
		return false
	}
}

// Snapshot returns the last rendered frame.
func (s *Screen) Snapshot() Frame { return *s.last.Load() }

// Renders counts redraws that produced a new frame (loop goroutine only).
func (s *Screen) Renders() int { return s.renders }

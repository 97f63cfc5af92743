// Package macro records timestamped mouse clicks and key combos and replays them.
package macro

import (
	"fmt"
	"sync"
	"time"
)

// EventKind classifies a recorded macro step
type EventKind string

const (
	MouseClick EventKind = "mouse_click"
	KeyCombo   EventKind = "key_combo"
)

// Event is one recorded step. Offset is milliseconds since the recording started.
type Event struct {
	Kind EventKind `json:"kind"`
	// Payload is the button id ("MOUSE1") or the combo id ("ctrl+v")
	Payload string `json:"payload"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Offset  int64  `json:"offset_ms"`
}

func (e Event) String() string {
	if e.Kind == MouseClick {
		return fmt.Sprintf("%s %s at (%d,%d) +%dms", e.Kind, e.Payload, e.X, e.Y, e.Offset)
	}
	return fmt.Sprintf("%s %s +%dms", e.Kind, e.Payload, e.Offset)
}

// Recording is an ordered macro, ascending by offset
type Recording struct {
	Events     []Event   `json:"events"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Len returns the number of steps
func (r Recording) Len() int {
	return len(r.Events)
}

// Duration returns the offset of the last step
func (r Recording) Duration() time.Duration {
	if len(r.Events) == 0 {
		return 0
	}
	return time.Duration(r.Events[len(r.Events)-1].Offset) * time.Millisecond
}

// Store holds the single current recording. A new recording replaces the old one.
type Store struct {
	mu  sync.RWMutex
	rec *Recording
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Set replaces the current recording. Empty recordings are refused so an
// earlier macro survives a failed attempt.
func (s *Store) Set(rec Recording) error {
	if rec.Len() == 0 {
		return ErrEmptyMacro
	}
	events := make([]Event, len(rec.Events))
	copy(events, rec.Events)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &Recording{Events: events, RecordedAt: rec.RecordedAt}
	return nil
}

// Get returns a copy of the current recording
func (s *Store) Get() (Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return Recording{}, false
	}
	events := make([]Event, len(s.rec.Events))
	copy(events, s.rec.Events)
	return Recording{Events: events, RecordedAt: s.rec.RecordedAt}, true
}

// Has reports whether a recording exists
func (s *Store) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec != nil
}

// Clear drops the current recording
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
}

package macro

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golem/internal/input"
)

// Capturer turns the raw input stream into a Recording while a session is active
type Capturer struct {
	mu sync.Mutex

	// Now is the session clock; tests replace it
	Now func() time.Time

	stopKey string
	combos  [][]string

	active bool
	start  time.Time
	last   int64
	events []Event
	held   map[string]bool
}

// NewCapturer creates a capturer that stops on stopKey and records the given combos
// (e.g. "Ctrl+V") when their final key is released.
func NewCapturer(stopKey string, combos []string) (*Capturer, error) {
	c := &Capturer{
		Now:     time.Now,
		stopKey: input.NormalizeKey(stopKey),
		held:    make(map[string]bool),
	}
	if c.stopKey == "" {
		return nil, fmt.Errorf("stop key must not be empty")
	}
	for _, combo := range combos {
		parts, err := input.ParseCombo(combo)
		if err != nil {
			return nil, err
		}
		if len(parts) < 2 {
			return nil, fmt.Errorf("combo %q needs a modifier and a key", combo)
		}
		c.combos = append(c.combos, parts)
	}
	return c, nil
}

// Start begins a new session. A running session is never replaced or merged.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadyRecording
	}
	c.active = true
	c.start = c.Now()
	c.last = 0
	c.events = nil
	c.held = make(map[string]bool)
	log.Printf("Macro Capturer: session started")
	return nil
}

// Active reports whether a session is running
func (c *Capturer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Observe consumes one raw event. It returns true when the stop key was pressed;
// the stop key itself is not recorded. Inactive capturers ignore every event.
func (c *Capturer) Observe(ev input.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return false
	}

	key := input.NormalizeKey(ev.Key)
	switch ev.Kind {
	case input.KeyDown:
		if key == c.stopKey && !c.modifierHeld() {
			return true
		}
		c.held[key] = true

	case input.KeyUp:
		if id, ok := c.completedCombo(key); ok {
			c.append(Event{Kind: KeyCombo, Payload: id})
		}
		delete(c.held, key)

	case input.ButtonDown:
		if !input.ClickableButton(key) {
			log.Printf("Macro Capturer: ignoring %s, it cannot be replayed", key)
			break
		}
		c.append(Event{Kind: MouseClick, Payload: key, X: ev.X, Y: ev.Y})
	}
	return false
}

// Stop ends the session and returns what was captured
func (c *Capturer) Stop() (Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return Recording{}, ErrNotRecording
	}
	c.active = false
	rec := Recording{Events: c.events, RecordedAt: c.start}
	c.events = nil
	log.Printf("Macro Capturer: session stopped with %d steps", rec.Len())
	return rec, nil
}

// append stamps the event with a non-decreasing offset. Caller holds c.mu.
func (c *Capturer) append(ev Event) {
	offset := c.Now().Sub(c.start).Milliseconds()
	if offset < c.last {
		offset = c.last
	}
	c.last = offset
	ev.Offset = offset
	c.events = append(c.events, ev)
}

func (c *Capturer) modifierHeld() bool {
	for k := range c.held {
		if input.IsModifier(k) {
			return true
		}
	}
	return false
}

// completedCombo reports whether releasing key completes a designated combo
// with all of its other keys still held. Caller holds c.mu.
func (c *Capturer) completedCombo(key string) (string, bool) {
	if !c.held[key] {
		return "", false
	}
	for _, parts := range c.combos {
		if parts[len(parts)-1] != key {
			continue
		}
		complete := true
		for _, p := range parts[:len(parts)-1] {
			if !c.held[p] {
				complete = false
				break
			}
		}
		if complete {
			return strings.ToLower(strings.Join(parts, "+")), true
		}
	}
	return "", false
}

// Package input provides cross-platform global input listening and input synthesis.
package input

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupported is returned by platform backends that are not available on this OS
var ErrUnsupported = errors.New("input backend not supported on this platform")

// Kind classifies a raw input event
type Kind int

const (
	KeyDown Kind = iota
	KeyUp
	ButtonDown
	ButtonUp
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case ButtonDown:
		return "button_down"
	case ButtonUp:
		return "button_up"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event represents a raw keyboard or mouse event observed by a Listener
type Event struct {
	Kind Kind
	// Key is the normalized upper-case key or button name, e.g. "CTRL", "V", "SPACE", "MOUSE1"
	Key string
	// X and Y are absolute screen coordinates, set for button events
	X    int
	Y    int
	Time time.Time
}

// IsMouse reports whether the event comes from a mouse button
func (e Event) IsMouse() bool {
	return e.Kind == ButtonDown || e.Kind == ButtonUp
}

// Handler receives events from a Listener. It is called from the listener's thread.
type Handler func(Event)

// Listener captures global keyboard and mouse events
type Listener interface {
	Start(handler Handler) error
	Stop() error
}

// Synthesizer dispatches synthetic input events to the OS
type Synthesizer interface {
	// MoveTo places the cursor at absolute screen coordinates
	MoveTo(x, y int) error
	// Click presses and releases a mouse button ("MOUSE1", "MOUSE2", "MOUSE3") at the current cursor position
	Click(button string) error
	// KeyCombo presses the given keys in order and releases them in reverse order
	KeyCombo(keys ...string) error
}

// ParseCombo splits a combo string such as "Ctrl+V" into normalized key names
func ParseCombo(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty key combo")
	}
	parts := strings.Split(strings.ToUpper(combo), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("invalid key combo %q", combo)
		}
		parts[i] = NormalizeKey(p)
	}
	return parts, nil
}

// NormalizeKey maps aliases to the canonical key names used by the listeners
func NormalizeKey(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	switch name {
	case "CONTROL", "CTL", "LCTRL", "RCTRL":
		return "CTRL"
	case "OPTION", "OPT", "LALT", "RALT":
		return "ALT"
	case "LSHIFT", "RSHIFT":
		return "SHIFT"
	case "COMMAND", "META", "SUPER", "WIN":
		return "CMD"
	case "ESCAPE":
		return "ESC"
	case "RETURN":
		return "ENTER"
	case " ":
		return "SPACE"
	case "LEFT_CLICK", "LMB":
		return "MOUSE1"
	}
	return name
}

// IsModifier reports whether the key name is a modifier
func IsModifier(key string) bool {
	switch key {
	case "CTRL", "ALT", "SHIFT", "CMD":
		return true
	}
	return false
}

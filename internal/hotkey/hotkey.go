// Package hotkey matches global key chords against the raw input stream.
package hotkey

import (
	"log"
	"sync"

	"golem/internal/input"
)

// Manager handles chord registration and matching. It is fed by an input.Listener.
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // map of current keys/buttons pressed
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "ALT", "R"]
	original string
	callback func()
	// fired is set while the chord is held so it triggers once per press
	fired bool
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// Register registers a chord string (e.g. "Ctrl+Alt+R", "Space") and a callback.
// An empty string is accepted and leaves the action unbound.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	if hotkeyStr == "" {
		return 0, nil
	}

	parts, err := input.ParseCombo(hotkeyStr)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	log.Printf("Hotkey Engine: registered %s", hotkeyStr)
	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// Handle feeds a raw input event into the matcher
func (m *Manager) Handle(ev input.Event) {
	switch ev.Kind {
	case input.KeyDown, input.ButtonDown:
		m.UpdateState(ev.Key, true)
	case input.KeyUp, input.ButtonUp:
		m.UpdateState(ev.Key, false)
	}
}

// Pressed reports whether a key is currently held
func (m *Manager) Pressed(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState[input.NormalizeKey(key)]
}

// UpdateState updates the internal state of a key or button and checks for matches.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = input.NormalizeKey(key)

	m.mu.Lock()
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	triggered := m.checkMatches()
	m.mu.Unlock()

	for _, hk := range triggered {
		log.Printf("Hotkey triggered: %s", hk.original)
		go hk.callback()
	}
}

// checkMatches re-arms released chords and returns the ones that just became fully held.
// Caller holds m.mu.
func (m *Manager) checkMatches() []*registeredHotkey {
	var triggered []*registeredHotkey
	for _, hk := range m.hotkeys {
		match := true
		// All parts of the hotkey must be in currentState
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}

		if !match {
			hk.fired = false
			continue
		}
		if !hk.fired {
			hk.fired = true
			triggered = append(triggered, hk)
		}
	}
	return triggered
}

package input

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var keyCodes = map[string]int{
	"A": keybd_event.VK_A, "B": keybd_event.VK_B, "C": keybd_event.VK_C, "D": keybd_event.VK_D,
	"E": keybd_event.VK_E, "F": keybd_event.VK_F, "G": keybd_event.VK_G, "H": keybd_event.VK_H,
	"I": keybd_event.VK_I, "J": keybd_event.VK_J, "K": keybd_event.VK_K, "L": keybd_event.VK_L,
	"M": keybd_event.VK_M, "N": keybd_event.VK_N, "O": keybd_event.VK_O, "P": keybd_event.VK_P,
	"Q": keybd_event.VK_Q, "R": keybd_event.VK_R, "S": keybd_event.VK_S, "T": keybd_event.VK_T,
	"U": keybd_event.VK_U, "V": keybd_event.VK_V, "W": keybd_event.VK_W, "X": keybd_event.VK_X,
	"Y": keybd_event.VK_Y, "Z": keybd_event.VK_Z,

	"0": keybd_event.VK_0, "1": keybd_event.VK_1, "2": keybd_event.VK_2, "3": keybd_event.VK_3,
	"4": keybd_event.VK_4, "5": keybd_event.VK_5, "6": keybd_event.VK_6, "7": keybd_event.VK_7,
	"8": keybd_event.VK_8, "9": keybd_event.VK_9,

	"SPACE": keybd_event.VK_SPACE,
	"ENTER": keybd_event.VK_ENTER,
	"TAB":   keybd_event.VK_TAB,
}

// OSSynthesizer dispatches synthetic input to the running desktop session.
// Key combos use keybd_event on every platform; mouse input uses the native backend.
type OSSynthesizer struct {
	mu sync.Mutex
	kb *keybd_event.KeyBonding
}

// NewSynthesizer creates the platform synthesizer. The keyboard device is opened lazily.
func NewSynthesizer() *OSSynthesizer {
	return &OSSynthesizer{}
}

// MoveTo moves the cursor to absolute screen coordinates
func (s *OSSynthesizer) MoveTo(x, y int) error {
	return platformMoveTo(x, y)
}

// ClickableButton reports whether Click can synthesize the named button.
// MOUSE4 and MOUSE5 are the back and forward side buttons.
func ClickableButton(button string) bool {
	switch button {
	case "MOUSE1", "MOUSE2", "MOUSE3", "MOUSE4", "MOUSE5":
		return true
	}
	return false
}

// Click clicks a mouse button at the current cursor position
func (s *OSSynthesizer) Click(button string) error {
	if !ClickableButton(button) {
		return fmt.Errorf("unsupported mouse button %q", button)
	}
	return platformClick(button)
}

// combo is a key combo resolved to keybd_event modifiers and key codes
type combo struct {
	ctrl, alt, shift, super bool
	codes                   []int
}

// resolveCombo maps normalized key names to a combo. CMD is the Super key,
// which keybd_event sends as Command on macOS and the Windows key elsewhere.
func resolveCombo(keys ...string) (combo, error) {
	var c combo
	for _, k := range keys {
		switch k = NormalizeKey(k); k {
		case "CTRL":
			c.ctrl = true
		case "ALT":
			c.alt = true
		case "SHIFT":
			c.shift = true
		case "CMD":
			c.super = true
		default:
			code, ok := keyCodes[k]
			if !ok {
				return combo{}, fmt.Errorf("unknown key %q", k)
			}
			c.codes = append(c.codes, code)
		}
	}
	if len(c.codes) == 0 {
		return combo{}, fmt.Errorf("key combo %v has no non-modifier key", keys)
	}
	return c, nil
}

// KeyCombo presses modifiers and the final key, then releases them
func (s *OSSynthesizer) KeyCombo(keys ...string) error {
	c, err := resolveCombo(keys...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kb == nil {
		kb, err := keybd_event.NewKeyBonding()
		if err != nil {
			return fmt.Errorf("open keyboard device: %w", err)
		}
		// uinput needs a moment before the virtual device accepts events
		if runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
		s.kb = &kb
	}

	s.kb.Clear()
	s.kb.HasCTRL(c.ctrl)
	s.kb.HasALT(c.alt)
	s.kb.HasSHIFT(c.shift)
	s.kb.HasSuper(c.super)
	s.kb.SetKeys(c.codes...)
	return s.kb.Launching()
}

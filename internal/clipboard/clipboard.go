// Package clipboard wraps the system clipboard.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// System reads and writes the OS clipboard
type System struct{}

// New returns the system clipboard
func New() *System {
	return &System{}
}

// Available reports whether a clipboard backend exists on this machine
func (System) Available() bool {
	return !clipboard.Unsupported
}

// SetText replaces the clipboard contents
func (System) SetText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Text returns the clipboard contents
func (System) Text() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

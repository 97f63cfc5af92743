package macro

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRecording is returned when a capture session is started while one is active
	ErrAlreadyRecording = errors.New("macro recording already in progress")
	// ErrNotRecording is returned when stopping a capturer that has no active session
	ErrNotRecording = errors.New("no macro recording in progress")
	// ErrNoMacroRecorded is returned when a replay or listen is requested before any macro exists
	ErrNoMacroRecorded = errors.New("no macro recorded")
	// ErrEmptyMacro is returned when a finished session captured no steps
	ErrEmptyMacro = errors.New("no steps captured")
)

// InputSynthesisError reports a failure to dispatch a recorded event to the OS
type InputSynthesisError struct {
	Index int
	Event Event
	Err   error
}

func (e *InputSynthesisError) Error() string {
	return fmt.Sprintf("replay step %d (%s): %v", e.Index+1, e.Event, e.Err)
}

func (e *InputSynthesisError) Unwrap() error {
	return e.Err
}

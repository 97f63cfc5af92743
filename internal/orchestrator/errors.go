package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is returned for every request after an emergency stop
	ErrTerminated = errors.New("golem has been stopped")
	// ErrNoTranscript is returned by CopyTranscript before the first transcription
	ErrNoTranscript = errors.New("no transcript yet")
)

// TransitionError reports a request that is not valid in the current state
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// Package orchestrator drives the record, listen and replay cycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"golem/internal/input"
	"golem/internal/macro"
)

// State is the orchestrator mode
type State int

const (
	Idle State = iota
	RecordingMacro
	RecordingVoice
	// Processing covers transcription and replay
	Processing
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RecordingMacro:
		return "recording_macro"
	case RecordingVoice:
		return "recording_voice"
	case Processing:
		return "processing"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// VoiceRecorder captures one utterance into an audio file
type VoiceRecorder interface {
	Start(ctx context.Context) error
	Stop() (string, error)
	Cancel()
}

// Transcriber turns an audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Clipboard receives the transcript
type Clipboard interface {
	SetText(text string) error
}

// Status is a snapshot published on every state change
type Status struct {
	State      string    `json:"state"`
	Message    string    `json:"message"`
	HasMacro   bool      `json:"has_macro"`
	Steps      int       `json:"steps"`
	Transcript string    `json:"transcript,omitempty"`
	Error      string    `json:"error,omitempty"`
	Session    string    `json:"session,omitempty"`
	Time       time.Time `json:"time"`
}

// Deps are the components the orchestrator coordinates
type Deps struct {
	Capturer    *macro.Capturer
	Player      *macro.Player
	Voice       VoiceRecorder
	Transcriber Transcriber
	Clipboard   Clipboard
	// Exit terminates the process; defaults to os.Exit
	Exit func(code int)
	// KeepAudio leaves recorded audio files on disk
	KeepAudio bool
}

// Orchestrator owns the current macro and serializes mode changes.
// The mutex guards state only; transcription and replay run unlocked.
type Orchestrator struct {
	mu sync.Mutex

	state      State
	message    string
	lastErr    string
	transcript string
	session    string

	// starting is set while voice.Start runs outside mu
	starting bool

	store       *macro.Store
	capturer    *macro.Capturer
	player      *macro.Player
	voice       VoiceRecorder
	transcriber Transcriber
	clipboard   Clipboard
	exit        func(int)
	keepAudio   bool

	// ctx is cancelled by EmergencyStop and parents every long operation
	ctx    context.Context
	cancel context.CancelFunc

	subMu   sync.Mutex
	subs    map[int]chan Status
	nextSub int
}

// New creates an idle orchestrator with an empty macro store
func New(d Deps) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	exit := d.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Orchestrator{
		state:       Idle,
		message:     "Ready.",
		store:       macro.NewStore(),
		capturer:    d.Capturer,
		player:      d.Player,
		voice:       d.Voice,
		transcriber: d.Transcriber,
		clipboard:   d.Clipboard,
		exit:        exit,
		keepAudio:   d.KeepAudio,
		ctx:         ctx,
		cancel:      cancel,
		subs:        make(map[int]chan Status),
	}
}

// State returns the current mode
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// HasMacro reports whether a macro is available for replay
func (o *Orchestrator) HasMacro() bool {
	return o.store.Has()
}

// Status returns the current snapshot
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Transcript returns the last successful transcription
func (o *Orchestrator) Transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript
}

// Subscribe returns a channel of status updates and a function that ends the subscription.
// Slow subscribers miss updates instead of blocking transitions.
func (o *Orchestrator) Subscribe() (<-chan Status, func()) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan Status, 16)
	o.subs[id] = ch

	return ch, func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Orchestrator) snapshotLocked() Status {
	rec, _ := o.store.Get()
	return Status{
		State:      o.state.String(),
		Message:    o.message,
		HasMacro:   rec.Len() > 0,
		Steps:      rec.Len(),
		Transcript: o.transcript,
		Error:      o.lastErr,
		Session:    o.session,
		Time:       time.Now(),
	}
}

// setLocked updates the status line. Caller holds o.mu and publishes afterwards.
func (o *Orchestrator) setLocked(message string, err error) Status {
	o.message = message
	o.lastErr = ""
	if err != nil {
		o.lastErr = err.Error()
	}
	return o.snapshotLocked()
}

func (o *Orchestrator) publish(st Status) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

// RecordMacro starts capturing a new macro. A second request while capturing is
// rejected with macro.ErrAlreadyRecording and the running session continues.
func (o *Orchestrator) RecordMacro() error {
	o.mu.Lock()
	switch o.state {
	case Terminated:
		o.mu.Unlock()
		return ErrTerminated
	case RecordingMacro:
		o.mu.Unlock()
		return macro.ErrAlreadyRecording
	case Idle:
	default:
		st := o.state
		o.mu.Unlock()
		return &TransitionError{Op: "record a macro", State: st}
	}

	if err := o.capturer.Start(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = RecordingMacro
	st := o.setLocked("Recording macro... press S to stop", nil)
	o.mu.Unlock()

	log.Printf("Orchestrator: recording macro")
	o.publish(st)
	return nil
}

// StopMacro finishes the capture and stores it. An empty capture keeps the previous macro.
func (o *Orchestrator) StopMacro() (macro.Recording, error) {
	o.mu.Lock()
	if o.state == Terminated {
		o.mu.Unlock()
		return macro.Recording{}, ErrTerminated
	}
	if o.state != RecordingMacro {
		st := o.state
		o.mu.Unlock()
		return macro.Recording{}, &TransitionError{Op: "stop macro recording", State: st}
	}

	rec, err := o.capturer.Stop()
	o.state = Idle
	if err == nil {
		err = o.store.Set(rec)
	}

	var st Status
	switch {
	case errors.Is(err, macro.ErrEmptyMacro):
		st = o.setLocked("No steps captured - try again", err)
	case err != nil:
		st = o.setLocked("Macro recording failed", err)
	default:
		st = o.setLocked(fmt.Sprintf("Macro captured (%d steps)", rec.Len()), nil)
	}
	o.mu.Unlock()

	log.Printf("Orchestrator: %s", st.Message)
	o.publish(st)
	if err != nil {
		return macro.Recording{}, err
	}
	return rec, nil
}

// ToggleMacro starts or stops macro recording depending on the current mode
func (o *Orchestrator) ToggleMacro() error {
	switch st := o.State(); st {
	case Idle:
		return o.RecordMacro()
	case RecordingMacro:
		_, err := o.StopMacro()
		return err
	case Terminated:
		return ErrTerminated
	default:
		return &TransitionError{Op: "toggle macro recording", State: st}
	}
}

// HandleInput forwards a raw event to the capturer while recording a macro
// and stops the recording when the stop key is seen.
func (o *Orchestrator) HandleInput(ev input.Event) {
	o.mu.Lock()
	if o.state != RecordingMacro {
		o.mu.Unlock()
		return
	}
	stop := o.capturer.Observe(ev)
	o.mu.Unlock()

	if stop {
		if _, err := o.StopMacro(); err != nil {
			log.Printf("Orchestrator: stop macro: %v", err)
		}
	}
}

// Listen starts voice capture. It requires a recorded macro.
func (o *Orchestrator) Listen() error {
	o.mu.Lock()
	if o.state == Terminated {
		o.mu.Unlock()
		return ErrTerminated
	}
	if o.state != Idle {
		st := o.state
		o.mu.Unlock()
		return &TransitionError{Op: "listen", State: st}
	}

	if !o.store.Has() {
		st := o.setLocked("Record a macro first!", macro.ErrNoMacroRecorded)
		o.mu.Unlock()
		o.publish(st)
		return macro.ErrNoMacroRecorded
	}

	// opening the audio device can be slow, so input keeps flowing meanwhile
	o.state = RecordingVoice
	o.starting = true
	o.mu.Unlock()

	err := o.voice.Start(o.ctx)

	o.mu.Lock()
	o.starting = false
	if o.state == Terminated {
		o.mu.Unlock()
		if err == nil {
			o.voice.Cancel()
		}
		return ErrTerminated
	}
	if err != nil {
		o.state = Idle
		st := o.setLocked("Microphone unavailable", err)
		o.mu.Unlock()
		o.publish(st)
		return err
	}

	o.session = uuid.New().String()
	st := o.setLocked("Listening... press Space to stop", nil)
	o.mu.Unlock()

	log.Printf("Orchestrator: listening (session %s)", st.Session)
	o.publish(st)
	return nil
}

// StopListening ends voice capture, transcribes it, puts the text on the
// clipboard and replays the macro. It blocks until the replay finishes.
// Any failure returns to Idle without replaying.
func (o *Orchestrator) StopListening(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state == Terminated {
		o.mu.Unlock()
		return "", ErrTerminated
	}
	if o.state != RecordingVoice || o.starting {
		st := o.state
		o.mu.Unlock()
		return "", &TransitionError{Op: "stop listening", State: st}
	}
	o.state = Processing
	session := o.session
	st := o.setLocked("Transcribing...", nil)
	o.mu.Unlock()
	o.publish(st)

	opCtx, opCancel := context.WithCancel(ctx)
	defer opCancel()
	stopWatch := context.AfterFunc(o.ctx, opCancel)
	defer stopWatch()

	text, err := o.process(opCtx, session)
	if err != nil {
		log.Printf("Orchestrator: session %s failed: %v", session, err)
		return "", o.finish("Failed: "+err.Error(), err)
	}
	return text, o.finish("Done. Ready.", nil)
}

func (o *Orchestrator) process(ctx context.Context, session string) (string, error) {
	path, err := o.voice.Stop()
	if err != nil {
		return "", err
	}
	if !o.keepAudio {
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("Orchestrator: remove %s: %v", path, err)
			}
		}()
	}

	text, err := o.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", err
	}
	log.Printf("Orchestrator: session %s transcribed %d chars", session, len(text))

	if err := o.clipboard.SetText(text); err != nil {
		return "", err
	}

	rec, ok := o.store.Get()
	if !ok {
		return "", macro.ErrNoMacroRecorded
	}

	o.mu.Lock()
	o.transcript = text
	if o.state == Terminated {
		o.mu.Unlock()
		return "", ErrTerminated
	}
	st := o.setLocked("Replaying macro...", nil)
	o.mu.Unlock()
	o.publish(st)

	if err := o.player.Replay(ctx, rec); err != nil {
		return "", err
	}
	return text, nil
}

// finish returns to Idle unless an emergency stop happened meanwhile
func (o *Orchestrator) finish(message string, err error) error {
	o.mu.Lock()
	if o.state == Terminated {
		o.mu.Unlock()
		if err == nil {
			return ErrTerminated
		}
		return err
	}
	o.state = Idle
	st := o.setLocked(message, err)
	o.mu.Unlock()

	o.publish(st)
	return err
}

// CopyTranscript puts the last transcription back on the clipboard
func (o *Orchestrator) CopyTranscript() (string, error) {
	o.mu.Lock()
	text := o.transcript
	o.mu.Unlock()

	if text == "" {
		return "", ErrNoTranscript
	}
	if err := o.clipboard.SetText(text); err != nil {
		return "", err
	}
	return text, nil
}

// EmergencyStop aborts whatever is running and exits the process with code 0
func (o *Orchestrator) EmergencyStop() {
	o.mu.Lock()
	if o.state == Terminated {
		o.mu.Unlock()
		return
	}
	prev := o.state
	o.state = Terminated
	o.cancel()
	if prev == RecordingMacro {
		_, _ = o.capturer.Stop()
	}
	st := o.setLocked("Emergency stop", nil)
	o.mu.Unlock()

	log.Printf("Orchestrator: emergency stop while %s", prev)
	o.voice.Cancel()
	o.publish(st)
	o.exit(0)
}

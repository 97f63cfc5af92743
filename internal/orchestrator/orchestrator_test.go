package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golem/internal/input"
	"golem/internal/macro"
)

// journal records calls from every fake in order
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, e := range j.all() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeSynth struct {
	j       *journal
	onClick func()
}

func (s *fakeSynth) MoveTo(x, y int) error {
	s.j.add("move %d,%d", x, y)
	return nil
}

func (s *fakeSynth) Click(button string) error {
	s.j.add("click %s", button)
	if s.onClick != nil {
		s.onClick()
	}
	return nil
}

func (s *fakeSynth) KeyCombo(keys ...string) error {
	s.j.add("combo %s", strings.Join(keys, "+"))
	return nil
}

type fakeVoice struct {
	j        *journal
	dir      string
	starts   int
	stopErr  error
	canceled int

	// entered and release hold Start open when set
	entered chan struct{}
	release chan struct{}
}

func (v *fakeVoice) Start(ctx context.Context) error {
	v.starts++
	v.j.add("voice start")
	if v.entered != nil {
		close(v.entered)
		<-v.release
	}
	return nil
}

func (v *fakeVoice) Stop() (string, error) {
	v.j.add("voice stop")
	if v.stopErr != nil {
		return "", v.stopErr
	}
	path := filepath.Join(v.dir, "utterance.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (v *fakeVoice) Cancel() {
	v.canceled++
	v.j.add("voice cancel")
}

type fakeTranscriber struct {
	j    *journal
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.j.add("transcribe %s", filepath.Base(path))
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeClipboard struct {
	j    *journal
	text string
}

func (c *fakeClipboard) SetText(text string) error {
	c.j.add("clipboard %q", text)
	c.text = text
	return nil
}

type harness struct {
	o        *Orchestrator
	j        *journal
	synth    *fakeSynth
	voice    *fakeVoice
	trans    *fakeTranscriber
	clip     *fakeClipboard
	player   *macro.Player
	exitMu   sync.Mutex
	exitCode int
	exited   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	j := &journal{}
	h := &harness{
		j:     j,
		synth: &fakeSynth{j: j},
		voice: &fakeVoice{j: j, dir: t.TempDir()},
		trans: &fakeTranscriber{j: j, text: "hello world"},
		clip:  &fakeClipboard{j: j},
	}

	capturer, err := macro.NewCapturer("S", []string{"Ctrl+V"})
	if err != nil {
		t.Fatalf("NewCapturer failed: %v", err)
	}
	h.player = macro.NewPlayer(h.synth, macro.ClickAtRecorded)
	h.player.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	h.o = New(Deps{
		Capturer:    capturer,
		Player:      h.player,
		Voice:       h.voice,
		Transcriber: h.trans,
		Clipboard:   h.clip,
		Exit: func(code int) {
			h.exitMu.Lock()
			defer h.exitMu.Unlock()
			h.exited = true
			h.exitCode = code
		},
	})
	return h
}

// recordPasteMacro records a click into a text field followed by Ctrl+V
func (h *harness) recordPasteMacro(t *testing.T) {
	t.Helper()
	if err := h.o.RecordMacro(); err != nil {
		t.Fatalf("RecordMacro failed: %v", err)
	}
	h.o.HandleInput(input.Event{Kind: input.ButtonDown, Key: "MOUSE1", X: 10, Y: 20})
	h.o.HandleInput(input.Event{Kind: input.ButtonUp, Key: "MOUSE1", X: 10, Y: 20})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "CTRL"})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "CTRL"})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "S"})

	if st := h.o.State(); st != Idle {
		t.Fatalf("Expected Idle after stop key, got %v", st)
	}
}

func TestHelloWorldScenario(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)

	if err := h.o.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if st := h.o.State(); st != RecordingVoice {
		t.Fatalf("Expected RecordingVoice, got %v", st)
	}

	text, err := h.o.StopListening(context.Background())
	if err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", text)
	}
	if h.clip.text != "hello world" {
		t.Errorf("Expected clipboard 'hello world', got %q", h.clip.text)
	}

	want := []string{
		"voice start",
		"voice stop",
		"transcribe utterance.wav",
		`clipboard "hello world"`,
		"move 10,20",
		"click MOUSE1",
		"combo CTRL+V",
	}
	got := h.j.all()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected calls\n%v\ngot\n%v", want, got)
	}
	if st := h.o.State(); st != Idle {
		t.Errorf("Expected Idle after replay, got %v", st)
	}
	if h.o.Transcript() != "hello world" {
		t.Errorf("Expected transcript to be kept, got %q", h.o.Transcript())
	}
	if _, err := os.Stat(filepath.Join(h.voice.dir, "utterance.wav")); !os.IsNotExist(err) {
		t.Error("Expected audio file to be removed after upload")
	}
}

func TestSinglePasteReplaysWithoutWaiting(t *testing.T) {
	h := newHarness(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.o.capturer.Now = func() time.Time { return at }

	h.o.RecordMacro()
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "CTRL"})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "CTRL"})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "S"})

	rec, ok := h.o.store.Get()
	if !ok {
		t.Fatal("Expected a stored macro")
	}
	if rec.Len() != 1 || rec.Events[0].Kind != macro.KeyCombo || rec.Events[0].Payload != "ctrl+v" || rec.Events[0].Offset != 0 {
		t.Fatalf("Expected a single ctrl+v at offset 0, got %v", rec.Events)
	}

	sleeps := 0
	h.player.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	h.o.Listen()
	text, err := h.o.StopListening(context.Background())
	if err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if text != "hello world" || h.clip.text != "hello world" {
		t.Errorf("Expected 'hello world' on the clipboard, got %q / %q", text, h.clip.text)
	}
	if sleeps != 0 {
		t.Errorf("Expected no waits for a 0ms step, got %d", sleeps)
	}
	if n := h.j.count("combo CTRL+V"); n != 1 {
		t.Errorf("Expected exactly one Ctrl+V, got %d in %v", n, h.j.all())
	}
	if n := h.j.count("click"); n != 0 {
		t.Errorf("Expected no clicks, got %d", n)
	}
}

func TestListenDoesNotBlockInput(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)
	h.voice.entered = make(chan struct{})
	h.voice.release = make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- h.o.Listen() }()

	select {
	case <-h.voice.entered:
	case <-time.After(time.Second):
		t.Fatal("Expected voice capture to start")
	}

	done := make(chan struct{})
	go func() {
		h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "A"})
		h.o.State()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected input handling to proceed while the microphone opens")
	}

	var tErr *TransitionError
	if _, err := h.o.StopListening(context.Background()); !errors.As(err, &tErr) {
		t.Errorf("Expected TransitionError while the microphone opens, got %v", err)
	}
	if err := h.o.RecordMacro(); !errors.As(err, &tErr) {
		t.Errorf("Expected TransitionError for RecordMacro while starting, got %v", err)
	}

	close(h.voice.release)
	if err := <-errCh; err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if st := h.o.Status(); st.State != RecordingVoice.String() || st.Session == "" {
		t.Errorf("Expected a listening session, got %+v", st)
	}
	if _, err := h.o.StopListening(context.Background()); err != nil {
		t.Errorf("StopListening failed: %v", err)
	}
}

func TestListenStartFailureReturnsIdle(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)
	h.o.voice = &failingVoice{fakeVoice: h.voice}

	if err := h.o.Listen(); err == nil {
		t.Fatal("Expected microphone error")
	}
	if st := h.o.Status(); st.State != Idle.String() || st.Message != "Microphone unavailable" {
		t.Errorf("Expected Idle with microphone message, got %+v", st)
	}
}

type failingVoice struct {
	*fakeVoice
}

func (v *failingVoice) Start(ctx context.Context) error {
	return errors.New("no input device")
}

// The tray only starts recordings; a session ends on the stop key, which is never recorded
func TestMenuRecordDuringSessionKeepsSteps(t *testing.T) {
	h := newHarness(t)
	if err := h.o.RecordMacro(); err != nil {
		t.Fatalf("RecordMacro failed: %v", err)
	}
	h.o.HandleInput(input.Event{Kind: input.ButtonDown, Key: "MOUSE1", X: 10, Y: 20})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "CTRL"})
	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "V"})
	h.o.HandleInput(input.Event{Kind: input.KeyUp, Key: "CTRL"})

	if err := h.o.RecordMacro(); !errors.Is(err, macro.ErrAlreadyRecording) {
		t.Fatalf("Expected ErrAlreadyRecording from a second start, got %v", err)
	}
	if st := h.o.State(); st != RecordingMacro {
		t.Fatalf("Expected recording to continue, got %v", st)
	}

	h.o.HandleInput(input.Event{Kind: input.KeyDown, Key: "S"})
	if st := h.o.State(); st != Idle {
		t.Fatalf("Expected Idle after stop key, got %v", st)
	}
	rec, ok := h.o.store.Get()
	if !ok {
		t.Fatal("Expected a stored macro")
	}
	if rec.Len() != 2 {
		t.Fatalf("Expected 2 steps, got %d: %v", rec.Len(), rec.Events)
	}
	if last := rec.Events[rec.Len()-1]; last.Kind != macro.KeyCombo || last.Payload != "ctrl+v" {
		t.Errorf("Expected the macro to end with ctrl+v, got %v", last)
	}
}

func TestListenWithoutMacro(t *testing.T) {
	h := newHarness(t)
	err := h.o.Listen()
	if !errors.Is(err, macro.ErrNoMacroRecorded) {
		t.Fatalf("Expected ErrNoMacroRecorded, got %v", err)
	}
	if st := h.o.State(); st != Idle {
		t.Errorf("Expected Idle, got %v", st)
	}
	if h.voice.starts != 0 {
		t.Errorf("Expected no microphone capture, got %d starts", h.voice.starts)
	}
	if msg := h.o.Status().Message; msg != "Record a macro first!" {
		t.Errorf("Unexpected status message %q", msg)
	}
}

func TestDuplicateRecordRejected(t *testing.T) {
	h := newHarness(t)
	h.o.RecordMacro()
	h.o.HandleInput(input.Event{Kind: input.ButtonDown, Key: "MOUSE1", X: 1, Y: 1})

	if err := h.o.RecordMacro(); !errors.Is(err, macro.ErrAlreadyRecording) {
		t.Fatalf("Expected ErrAlreadyRecording, got %v", err)
	}
	if st := h.o.State(); st != RecordingMacro {
		t.Fatalf("Expected the running session to continue, got %v", st)
	}

	h.o.HandleInput(input.Event{Kind: input.ButtonDown, Key: "MOUSE3", X: 2, Y: 2})
	rec, err := h.o.StopMacro()
	if err != nil {
		t.Fatalf("StopMacro failed: %v", err)
	}
	if rec.Len() != 2 {
		t.Errorf("Expected 2 steps from the single session, got %d", rec.Len())
	}
}

func TestEmptyMacroKeepsPrevious(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)

	h.o.ToggleMacro()
	if err := h.o.ToggleMacro(); !errors.Is(err, macro.ErrEmptyMacro) {
		t.Fatalf("Expected ErrEmptyMacro, got %v", err)
	}
	if st := h.o.Status(); !st.HasMacro || st.Steps != 2 {
		t.Errorf("Expected previous 2-step macro to survive, got %+v", st)
	}
	if msg := h.o.Status().Message; msg != "No steps captured - try again" {
		t.Errorf("Unexpected status message %q", msg)
	}
}

func TestTranscriptionFailureSkipsReplay(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)
	h.trans.err = errors.New("server down")

	h.o.Listen()
	if _, err := h.o.StopListening(context.Background()); err == nil {
		t.Fatal("Expected transcription error")
	}
	if h.j.count("click") != 0 || h.j.count("clipboard") != 0 {
		t.Errorf("Expected no clipboard write and no replay, got %v", h.j.all())
	}
	if st := h.o.State(); st != Idle {
		t.Errorf("Expected Idle after failure, got %v", st)
	}
	if h.o.Status().Error == "" {
		t.Error("Expected error to be reported in status")
	}
}

func TestVoiceFailureReturnsIdle(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)
	h.voice.stopErr = errors.New("no audio captured")

	h.o.Listen()
	if _, err := h.o.StopListening(context.Background()); err == nil {
		t.Fatal("Expected voice error")
	}
	if h.j.count("transcribe") != 0 {
		t.Error("Expected no transcription without audio")
	}
	if st := h.o.State(); st != Idle {
		t.Errorf("Expected Idle, got %v", st)
	}
}

func TestInvalidTransitions(t *testing.T) {
	h := newHarness(t)

	var tErr *TransitionError
	if _, err := h.o.StopMacro(); !errors.As(err, &tErr) {
		t.Errorf("Expected TransitionError for StopMacro while idle, got %v", err)
	}
	if _, err := h.o.StopListening(context.Background()); !errors.As(err, &tErr) {
		t.Errorf("Expected TransitionError for StopListening while idle, got %v", err)
	}

	h.o.RecordMacro()
	if err := h.o.Listen(); !errors.As(err, &tErr) {
		t.Errorf("Expected TransitionError for Listen while recording, got %v", err)
	}
	if tErr != nil && tErr.State != RecordingMacro {
		t.Errorf("Expected state recording_macro in error, got %v", tErr.State)
	}
}

func TestEmergencyStopDuringReplay(t *testing.T) {
	h := newHarness(t)

	// three clicks, the wait before the second one blocks until cancelled
	h.o.RecordMacro()
	for i := 0; i < 3; i++ {
		h.o.HandleInput(input.Event{Kind: input.ButtonDown, Key: "MOUSE1", X: i, Y: i})
	}
	if _, err := h.o.StopMacro(); err != nil {
		t.Fatalf("StopMacro failed: %v", err)
	}

	waiting := make(chan struct{})
	var once sync.Once
	h.player.Sleep = func(ctx context.Context, d time.Duration) error {
		once.Do(func() { close(waiting) })
		<-ctx.Done()
		return ctx.Err()
	}

	// force a gap before the second click so the player waits there
	rec, _ := h.o.store.Get()
	for i := range rec.Events {
		rec.Events[i].Offset = int64(i) * 100
	}
	h.o.store.Set(rec)

	h.o.Listen()
	errCh := make(chan error, 1)
	go func() {
		_, err := h.o.StopListening(context.Background())
		errCh <- err
	}()

	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("Expected replay to reach the second wait")
	}
	h.o.EmergencyStop()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected StopListening to return after emergency stop")
	}

	if n := h.j.count("click"); n != 1 {
		t.Errorf("Expected exactly 1 replayed click, got %d", n)
	}
	h.exitMu.Lock()
	if !h.exited || h.exitCode != 0 {
		t.Errorf("Expected exit(0), got exited=%v code=%d", h.exited, h.exitCode)
	}
	h.exitMu.Unlock()

	if st := h.o.State(); st != Terminated {
		t.Errorf("Expected Terminated, got %v", st)
	}
	if err := h.o.RecordMacro(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Expected ErrTerminated after emergency stop, got %v", err)
	}
}

func TestEmergencyStopWhileListening(t *testing.T) {
	h := newHarness(t)
	h.recordPasteMacro(t)
	h.o.Listen()

	h.o.EmergencyStop()
	if h.voice.canceled != 1 {
		t.Errorf("Expected voice capture to be canceled, got %d", h.voice.canceled)
	}
	if _, err := h.o.StopListening(context.Background()); !errors.Is(err, ErrTerminated) {
		t.Errorf("Expected ErrTerminated, got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.o.Subscribe()
	defer cancel()

	h.o.RecordMacro()
	select {
	case st := <-ch:
		if st.State != "recording_macro" {
			t.Errorf("Expected recording_macro, got %s", st.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a status update")
	}
}

func TestCopyTranscript(t *testing.T) {
	h := newHarness(t)
	if _, err := h.o.CopyTranscript(); err == nil {
		t.Error("Expected error before any transcription")
	}

	h.recordPasteMacro(t)
	h.o.Listen()
	h.o.StopListening(context.Background())
	h.clip.text = ""

	text, err := h.o.CopyTranscript()
	if err != nil {
		t.Fatalf("CopyTranscript failed: %v", err)
	}
	if text != "hello world" || h.clip.text != "hello world" {
		t.Errorf("Expected transcript copied, got %q / %q", text, h.clip.text)
	}
}

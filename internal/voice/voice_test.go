package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

type fakeSource struct {
	mu      sync.Mutex
	silent  bool
	instant bool
	openErr error
	opened  int
	closed  int
	reads   int
}

func (s *fakeSource) Open(f Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened++
	return nil
}

func (s *fakeSource) Read(buf []int16) (int, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	if !s.instant {
		time.Sleep(time.Millisecond)
	}
	if s.silent {
		return 0, nil
	}
	for i := range buf {
		buf[i] = int16(i % 128)
	}
	return len(buf), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func testFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, FramesPerBuffer: 256}
}

func TestRecordProducesWav(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}
	r := NewRecorder(src, testFormat(), dir)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "golem-") || filepath.Ext(path) != ".wav" {
		t.Errorf("Unexpected wav path %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open wav failed: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("Expected a valid wav file")
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("Unexpected format: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	if src.opened != 1 || src.closed != 1 {
		t.Errorf("Expected source opened and closed once, got %d/%d", src.opened, src.closed)
	}
	if r.State() != StateIdle {
		t.Errorf("Expected idle recorder, got %v", r.State())
	}
}

func TestStartTwice(t *testing.T) {
	r := NewRecorder(&fakeSource{}, testFormat(), t.TempDir())
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Cancel()

	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Expected ErrAlreadyRecording, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := NewRecorder(&fakeSource{}, testFormat(), t.TempDir())
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
	// no-op
	r.Cancel()
}

func TestNoAudio(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(&fakeSource{silent: true}, testFormat(), dir)
	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)

	if _, err := r.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Expected ErrNoAudio, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected temp file to be removed, found %d entries", len(entries))
	}
}

func TestEmptyReadsBackOff(t *testing.T) {
	src := &fakeSource{silent: true, instant: true}
	r := NewRecorder(src, testFormat(), t.TempDir())
	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	if _, err := r.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Expected ErrNoAudio, got %v", err)
	}
	src.mu.Lock()
	reads := src.reads
	src.mu.Unlock()
	// about one read per emptyReadWait; a busy loop does thousands
	if reads == 0 || reads > 100 {
		t.Errorf("Expected a handful of reads in 50ms, got %d", reads)
	}
}

func TestCancelRemovesFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(&fakeSource{}, testFormat(), dir)
	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	r.Cancel()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected temp file to be removed, found %d entries", len(entries))
	}
	if r.State() != StateIdle {
		t.Errorf("Expected idle recorder after cancel, got %v", r.State())
	}
	// can record again
	if err := r.Start(context.Background()); err != nil {
		t.Errorf("Expected restart after cancel, got %v", err)
	}
	r.Cancel()
}

func TestOpenFailure(t *testing.T) {
	r := NewRecorder(&fakeSource{openErr: errors.New("no device")}, testFormat(), t.TempDir())
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Expected error when the source cannot be opened")
	}
	if r.State() != StateIdle {
		t.Errorf("Expected idle recorder, got %v", r.State())
	}
}

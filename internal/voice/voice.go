// Package voice captures microphone audio into temporary WAV files.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is running
	ErrAlreadyRecording = errors.New("voice capture already in progress")
	// ErrNotRecording is returned by Stop when nothing is being captured
	ErrNotRecording = errors.New("no voice capture in progress")
	// ErrNoAudio is returned by Stop when no frames were captured
	ErrNoAudio = errors.New("no audio captured")
)

// Format describes the PCM stream requested from a Source
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// emptyReadWait is how long the loop backs off after a read returned no samples
var emptyReadWait = 5 * time.Millisecond

// DefaultFormat is 16 kHz mono, which speech models expect
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, FramesPerBuffer: 1024}

// Source is a blocking PCM input such as a microphone
type Source interface {
	Open(f Format) error
	// Read fills buf with interleaved 16-bit samples and returns how many were read
	Read(buf []int16) (int, error)
	Close() error
}

// State represents recorder state
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateCanceled
)

type result struct {
	path    string
	samples int
	err     error
}

// Recorder streams a Source into a WAV file between Start and Stop
type Recorder struct {
	mu      sync.Mutex
	state   State
	src     Source
	format  Format
	tempDir string

	stopCancel context.CancelFunc
	done       chan result
}

// NewRecorder creates a recorder writing into tempDir (os.TempDir when empty)
func NewRecorder(src Source, format Format, tempDir string) *Recorder {
	if format.SampleRate <= 0 {
		format.SampleRate = DefaultFormat.SampleRate
	}
	if format.Channels <= 0 {
		format.Channels = DefaultFormat.Channels
	}
	if format.FramesPerBuffer <= 0 {
		format.FramesPerBuffer = DefaultFormat.FramesPerBuffer
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Recorder{src: src, format: format, tempDir: tempDir}
}

// State returns the current recorder state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens the source and begins writing frames. Capture ends when Stop or
// Cancel is called or ctx is done.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrAlreadyRecording
	}

	if err := r.src.Open(r.format); err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}

	path := filepath.Join(r.tempDir, "golem-"+uuid.New().String()+".wav")
	file, err := os.Create(path)
	if err != nil {
		_ = r.src.Close()
		return fmt.Errorf("create wav: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.state = StateRecording
	r.stopCancel = cancel
	r.done = make(chan result, 1)

	log.Printf("Voice Recorder: capturing to %s", path)
	go r.recordLoop(loopCtx, file, path)
	return nil
}

// Stop ends the capture and returns the finalized WAV path
func (r *Recorder) Stop() (string, error) {
	res, err := r.finishWith(StateStopping)
	if err != nil {
		return "", err
	}
	if res.err != nil {
		_ = os.Remove(res.path)
		return "", res.err
	}
	if res.samples == 0 {
		_ = os.Remove(res.path)
		return "", ErrNoAudio
	}
	log.Printf("Voice Recorder: captured %d samples", res.samples)
	return res.path, nil
}

// Cancel discards the capture. It is a no-op when idle.
func (r *Recorder) Cancel() {
	res, err := r.finishWith(StateCanceled)
	if err != nil {
		return
	}
	_ = os.Remove(res.path)
	log.Printf("Voice Recorder: capture canceled")
}

func (r *Recorder) finishWith(state State) (result, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return result{}, ErrNotRecording
	}
	r.state = state
	cancel := r.stopCancel
	done := r.done
	r.mu.Unlock()

	cancel()
	res := <-done

	r.mu.Lock()
	r.state = StateIdle
	r.stopCancel = nil
	r.mu.Unlock()
	return res, nil
}

func (r *Recorder) recordLoop(ctx context.Context, file *os.File, path string) {
	f := r.format
	in := make([]int16, f.FramesPerBuffer*f.Channels)
	intBuf := make([]int, len(in))
	enc := wav.NewEncoder(file, f.SampleRate, 16, f.Channels, 1)
	format := &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate}

	var samples int
	var loopErr error

	for ctx.Err() == nil {
		n, err := r.src.Read(in)
		if err != nil {
			if ctx.Err() == nil {
				loopErr = fmt.Errorf("read audio: %w", err)
			}
			break
		}
		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(emptyReadWait):
			}
			continue
		}
		for i, v := range in[:n] {
			intBuf[i] = int(v)
		}
		buf := &audio.IntBuffer{Format: format, Data: intBuf[:n], SourceBitDepth: 16}
		if err := enc.Write(buf); err != nil {
			loopErr = fmt.Errorf("wav write failed: %w", err)
			break
		}
		samples += n
	}

	if err := r.src.Close(); err != nil {
		log.Printf("Voice Recorder: close source: %v", err)
	}
	if err := enc.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("wav close failed: %w", err)
	}
	if err := file.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("close wav file: %w", err)
	}

	r.done <- result{path: path, samples: samples, err: loopErr}
}

// Package mic is the PortAudio microphone source for the voice recorder.
package mic

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"golem/internal/voice"
)

// Source reads the default input device through PortAudio
type Source struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
}

// NewSource creates an unopened microphone source
func NewSource() *Source {
	return &Source{}
}

// Open initializes PortAudio and starts the default input stream
func (s *Source) Open(f voice.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return fmt.Errorf("microphone already open")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init failed: %w", err)
	}

	s.in = make([]int16, f.FramesPerBuffer*f.Channels)
	stream, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), f.FramesPerBuffer, s.in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open stream failed: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start stream failed: %w", err)
	}
	s.stream = stream
	return nil
}

// Read blocks until one buffer of samples is available
func (s *Source) Read(buf []int16) (int, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return 0, fmt.Errorf("microphone not open")
	}

	if err := stream.Read(); err != nil {
		// overflow drops samples but the stream stays usable
		if err == portaudio.InputOverflowed {
			return copy(buf, s.in), nil
		}
		return 0, err
	}
	return copy(buf, s.in), nil
}

// Close stops the stream and releases PortAudio
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	if tErr := portaudio.Terminate(); err == nil {
		err = tErr
	}
	return err
}

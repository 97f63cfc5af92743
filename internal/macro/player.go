package macro

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golem/internal/input"
)

// ClickPolicy selects where replayed mouse clicks land
type ClickPolicy string

const (
	// ClickAtRecorded moves the cursor to the recorded position before clicking
	ClickAtRecorded ClickPolicy = "recorded"
	// ClickAtCursor clicks wherever the cursor currently is
	ClickAtCursor ClickPolicy = "cursor"
)

// ParseClickPolicy maps a config value to a ClickPolicy. Empty means ClickAtRecorded.
func ParseClickPolicy(s string) (ClickPolicy, error) {
	switch ClickPolicy(s) {
	case "", ClickAtRecorded:
		return ClickAtRecorded, nil
	case ClickAtCursor:
		return ClickAtCursor, nil
	}
	return "", fmt.Errorf("unknown click policy %q", s)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Player replays recordings through a Synthesizer, reproducing the recorded gaps
type Player struct {
	synth  input.Synthesizer
	policy ClickPolicy

	// Sleep is replaced in tests
	Sleep Sleeper

	mu      sync.Mutex
	playing bool
}

// NewPlayer creates a player
func NewPlayer(synth input.Synthesizer, policy ClickPolicy) *Player {
	if policy == "" {
		policy = ClickAtRecorded
	}
	return &Player{
		synth:  synth,
		policy: policy,
		Sleep:  ContextSleep,
	}
}

// Playing reports whether a replay is in progress
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Replay dispatches every event of rec in order. It blocks for the whole macro
// and stops before the next event once ctx is cancelled.
func (p *Player) Replay(ctx context.Context, rec Recording) error {
	if rec.Len() == 0 {
		return ErrNoMacroRecorded
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("replay already in progress")
	}
	p.playing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	log.Printf("Macro Player: replaying %d steps (%v)", rec.Len(), rec.Duration())

	var prev int64
	for i, ev := range rec.Events {
		if err := ctx.Err(); err != nil {
			return err
		}

		if wait := ev.Offset - prev; wait > 0 {
			if err := p.Sleep(ctx, time.Duration(wait)*time.Millisecond); err != nil {
				return err
			}
		}
		prev = ev.Offset

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.dispatch(ev); err != nil {
			return &InputSynthesisError{Index: i, Event: ev, Err: err}
		}
	}

	log.Printf("Macro Player: replay finished")
	return nil
}

func (p *Player) dispatch(ev Event) error {
	switch ev.Kind {
	case MouseClick:
		if p.policy == ClickAtRecorded {
			if err := p.synth.MoveTo(ev.X, ev.Y); err != nil {
				return err
			}
		}
		return p.synth.Click(ev.Payload)

	case KeyCombo:
		keys, err := input.ParseCombo(ev.Payload)
		if err != nil {
			return err
		}
		return p.synth.KeyCombo(keys...)
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}

package paddle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"keyerd/internal/keyer"
)

// ParseScript reads paddle edges, one per line:
//
//	<ms> <dit|dah|straight> <down|up>
//
// Blank lines and text after '#' are ignored. Times are offsets in
// milliseconds and must not decrease. Errors name the offending line.
func ParseScript(r io.Reader) ([]Event, error) {
	var (
		events []Event
		lineNo int
		last   int64 = -1
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected \"<ms> <paddle> <down|up>\", got %d fields", lineNo, len(fields))
		}

		ms, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("line %d: invalid time %q", lineNo, fields[0])
		}
		if ms < last {
			return nil, fmt.Errorf("line %d: time %d goes backwards (previous %d)", lineNo, ms, last)
		}
		last = ms

		p := keyer.ParsePaddle(strings.ToLower(fields[1]))
		if p == keyer.None {
			return nil, fmt.Errorf("line %d: unknown paddle %q", lineNo, fields[1])
		}

		var pressed bool
		switch strings.ToLower(fields[2]) {
		case "down", "press", "1":
			pressed = true
		case "up", "release", "0":
		default:
			return nil, fmt.Errorf("line %d: invalid state %q (want down or up)", lineNo, fields[2])
		}

		events = append(events, Event{
			Paddle:  p,
			Pressed: pressed,
			At:      time.Duration(ms) * time.Millisecond,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return events, nil
}

// FormatScript writes events in the format ParseScript reads.
func FormatScript(w io.Writer, events []Event) error {
	for _, e := range events {
		state := "up"
		if e.Pressed {
			state = "down"
		}
		if _, err := fmt.Fprintf(w, "%d %s %s\n", e.At.Milliseconds(), e.Paddle, state); err != nil {
			return err
		}
	}
	return nil
}

// Duration returns the time of the last event.
func Duration(events []Event) time.Duration {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].At
}

// ScriptSource plays a fixed list of events in real time.
type ScriptSource struct {
	events []Event

	mu      sync.Mutex
	out     chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScriptSource creates a source for events. Events are sorted by time.
func NewScriptSource(events []Event) *ScriptSource {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })
	return &ScriptSource{events: sorted}
}

// Script returns the events in playback order.
func (s *ScriptSource) Script() []Event {
	return s.events
}

// Events returns the event channel. It is valid after Start.
func (s *ScriptSource) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Start begins playback. The channel closes after the last event.
func (s *ScriptSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.out = make(chan Event, eventBuffer)
	s.done = make(chan struct{})
	s.running = true

	go s.play(ctx, s.out, s.done)
	return nil
}

func (s *ScriptSource) play(ctx context.Context, out chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for _, e := range s.events {
		if wait := e.At - time.Since(start); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- e:
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends playback early.
func (s *ScriptSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Package paddle produces paddle edge events for the keying engine.
//
// Sources:
//   - EvdevSource reads a Linux input device (/dev/input/eventN) and maps
//     key codes to the dit, dah and straight key levers.
//   - ScriptSource replays a text script of timed edges.
package paddle

import (
	"context"
	"errors"
	"time"

	"keyerd/internal/keyer"
)

var (
	// ErrNotAvailable is returned when live input is not supported on this
	// platform.
	ErrNotAvailable = errors.New("paddle input not available on this platform")
	// ErrAlreadyRunning is returned by Start on a running source.
	ErrAlreadyRunning = errors.New("paddle source already running")
)

// Event is one paddle edge. At is the offset from the start of the source.
type Event struct {
	Paddle  keyer.Paddle
	Pressed bool
	At      time.Duration
}

// Source produces paddle events. Events is closed when the source stops.
type Source interface {
	Events() <-chan Event
	Start(ctx context.Context) error
	Stop() error
}

// Mapping assigns input key codes to levers.
type Mapping struct {
	Dit      uint16
	Dah      uint16
	Straight uint16
	// Swap exchanges dit and dah.
	Swap bool
}

// Lookup returns the lever for code, or keyer.None.
func (m Mapping) Lookup(code uint16) keyer.Paddle {
	var p keyer.Paddle
	switch code {
	case m.Dit:
		p = keyer.Dit
	case m.Dah:
		p = keyer.Dah
	case m.Straight:
		return keyer.Straight
	default:
		return keyer.None
	}
	if m.Swap {
		p = 1 - p
	}
	return p
}

const eventBuffer = 64

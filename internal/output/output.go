// Package output provides keyer.Transmitter implementations ("sinks") that
// fan relay edges out to logs, MIDI notes, metrics and the element journal.
//
// Sinks are called on the engine goroutine and must not block it; anything
// that does I/O either tolerates a slow writer or hands work to its own
// goroutine.
package output

import "keyerd/internal/keyer"

// Clock reports the engine time in milliseconds.
type Clock interface {
	NowMs() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

// NowMs implements Clock.
func (f ClockFunc) NowMs() int64 { return f() }

// Fanout forwards every call to each member in order.
type Fanout []keyer.Transmitter

// NewFanout builds a Fanout, skipping nil members.
func NewFanout(sinks ...keyer.Transmitter) Fanout {
	var f Fanout
	for _, s := range sinks {
		if s != nil {
			f = append(f, s)
		}
	}
	return f
}

func (f Fanout) BeginTx() {
	for _, t := range f {
		t.BeginTx()
	}
}

func (f Fanout) EndTx() {
	for _, t := range f {
		t.EndTx()
	}
}

func (f Fanout) BeginRelay(relay keyer.Paddle) {
	for _, t := range f {
		t.BeginRelay(relay)
	}
}

func (f Fanout) EndRelay(relay keyer.Paddle) {
	for _, t := range f {
		t.EndRelay(relay)
	}
}

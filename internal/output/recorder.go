package output

import (
	"fmt"
	"strings"

	"keyerd/internal/keyer"
)

// Mark is one relay edge on a Recorder timeline.
type Mark struct {
	At    int64
	Relay keyer.Paddle
	On    bool
}

// Span is a closed relay interval reconstructed from marks.
type Span struct {
	Relay   keyer.Paddle
	StartMs int64
	EndMs   int64
}

// Recorder keeps every relay edge in memory. It is used by replay and by
// tests that assert on timing.
type Recorder struct {
	clock Clock
	marks []Mark
	txOn  int
	txOff int
}

// NewRecorder creates a Recorder stamping marks with clock.
func NewRecorder(clock Clock) *Recorder {
	return &Recorder{clock: clock}
}

func (r *Recorder) BeginTx() { r.txOn++ }
func (r *Recorder) EndTx()   { r.txOff++ }

func (r *Recorder) BeginRelay(relay keyer.Paddle) {
	r.marks = append(r.marks, Mark{At: r.clock.NowMs(), Relay: relay, On: true})
}

func (r *Recorder) EndRelay(relay keyer.Paddle) {
	r.marks = append(r.marks, Mark{At: r.clock.NowMs(), Relay: relay, On: false})
}

// Marks returns the recorded edges.
func (r *Recorder) Marks() []Mark {
	return r.marks
}

// TxEdges returns how many BeginTx and EndTx calls were seen.
func (r *Recorder) TxEdges() (on, off int) {
	return r.txOn, r.txOff
}

// Elements returns the asserted relays in order of assertion.
func (r *Recorder) Elements() []keyer.Paddle {
	var out []keyer.Paddle
	for _, m := range r.marks {
		if m.On {
			out = append(out, m.Relay)
		}
	}
	return out
}

// Spans pairs each closing edge with the following opening edge of the
// same relay. A relay still closed at the end is left out.
func (r *Recorder) Spans() []Span {
	var (
		out   []Span
		start [2]int64
		open  [2]bool
	)
	for _, m := range r.marks {
		if m.Relay != keyer.Dit && m.Relay != keyer.Dah {
			continue
		}
		if m.On {
			start[m.Relay] = m.At
			open[m.Relay] = true
			continue
		}
		if open[m.Relay] {
			out = append(out, Span{Relay: m.Relay, StartMs: start[m.Relay], EndMs: m.At})
			open[m.Relay] = false
		}
	}
	return out
}

// Symbols renders the asserted relays as "." and "-".
func (r *Recorder) Symbols() string {
	var b strings.Builder
	for _, p := range r.Elements() {
		if p == keyer.Dah {
			b.WriteByte('-')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// String renders one line per edge, e.g. "1000 dit on".
func (r *Recorder) String() string {
	var b strings.Builder
	for _, m := range r.marks {
		state := "off"
		if m.On {
			state = "on"
		}
		fmt.Fprintf(&b, "%d %s %s\n", m.At, m.Relay, state)
	}
	return b.String()
}

// Reset forgets all marks.
func (r *Recorder) Reset() {
	r.marks = nil
	r.txOn, r.txOff = 0, 0
}

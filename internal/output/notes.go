package output

import (
	"io"
	"sync/atomic"

	"keyerd/internal/keyer"
	"keyerd/internal/logging"
)

// MIDI status bytes for channel 0.
const (
	noteOn  = 0x90
	noteOff = 0x80

	// DefaultVelocity is the note-on velocity.
	DefaultVelocity = 0x7f
	// DefaultDitNote and DefaultDahNote are the note numbers per relay.
	DefaultDitNote = 1
	DefaultDahNote = 2
)

// NoteSink writes a MIDI note-on when a relay closes and a note-off when it
// opens, one note number per relay. Write errors are counted and logged,
// never returned.
type NoteSink struct {
	w        io.Writer
	notes    [2]byte
	velocity byte
	log      *logging.Logger
	errors   atomic.Uint64
	onError  func()
}

// NoteOption configures a NoteSink.
type NoteOption func(*NoteSink)

// WithNotes sets the dit and dah note numbers. Values are masked to 7 bits.
func WithNotes(dit, dah int) NoteOption {
	return func(s *NoteSink) {
		s.notes = [2]byte{byte(dit) & 0x7f, byte(dah) & 0x7f}
	}
}

// WithVelocity sets the note-on velocity.
func WithVelocity(v int) NoteOption {
	return func(s *NoteSink) { s.velocity = byte(v) & 0x7f }
}

// WithNoteLogger sets the logger used for write errors.
func WithNoteLogger(l *logging.Logger) NoteOption {
	return func(s *NoteSink) { s.log = l }
}

// WithErrorHook is called after every failed write.
func WithErrorHook(fn func()) NoteOption {
	return func(s *NoteSink) { s.onError = fn }
}

// NewNoteSink creates a NoteSink writing to w.
func NewNoteSink(w io.Writer, opts ...NoteOption) *NoteSink {
	s := &NoteSink{
		w:        w,
		notes:    [2]byte{DefaultDitNote, DefaultDahNote},
		velocity: DefaultVelocity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	return s
}

// Errors returns the number of failed writes.
func (s *NoteSink) Errors() uint64 {
	return s.errors.Load()
}

func (s *NoteSink) BeginTx() {}
func (s *NoteSink) EndTx()   {}

func (s *NoteSink) BeginRelay(relay keyer.Paddle) {
	s.send(noteOn, relay, s.velocity)
}

func (s *NoteSink) EndRelay(relay keyer.Paddle) {
	s.send(noteOff, relay, 0)
}

func (s *NoteSink) send(status byte, relay keyer.Paddle, velocity byte) {
	if relay != keyer.Dit && relay != keyer.Dah {
		return
	}
	msg := [3]byte{status, s.notes[relay], velocity}
	if _, err := s.w.Write(msg[:]); err != nil {
		if s.errors.Add(1) == 1 {
			s.log.Warn("note output failing", "error", err)
		}
		if s.onError != nil {
			s.onError()
		}
	}
}

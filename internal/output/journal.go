package output

import (
	"context"
	"sync"
	"sync/atomic"

	"keyerd/internal/keyer"
	"keyerd/internal/logging"
	"keyerd/internal/store"
)

// ElementWriter persists journal elements. *store.Store implements it.
type ElementWriter interface {
	InsertElement(e *store.Element) error
}

// JournalSink turns relay begin/end pairs into store.Element rows for the
// current session. Rows are handed to a writer goroutine through a bounded
// queue; when the queue is full the element is dropped and counted.
type JournalSink struct {
	w     ElementWriter
	clock Clock
	log   *logging.Logger

	session string
	ordinal int
	inline  bool
	starts  [2]int64
	open    [2]bool

	queue   chan store.Element
	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

// DefaultJournalQueue is the number of elements buffered for the writer.
const DefaultJournalQueue = 256

// NewJournalSink creates a JournalSink. Call Run to start writing.
func NewJournalSink(w ElementWriter, clock Clock, log *logging.Logger) *JournalSink {
	if log == nil {
		log = logging.Default()
	}
	return &JournalSink{
		w:     w,
		clock: clock,
		log:   log.WithComponent("journal"),
		queue: make(chan store.Element, DefaultJournalQueue),
	}
}

// SetSession starts numbering elements for a new session. An empty id
// disables recording. A relay still closed keeps its start and is
// journaled under the new session when it opens. Must be called on the
// engine goroutine.
func (s *JournalSink) SetSession(id string) {
	s.session = id
	s.ordinal = 0
}

// SetInline makes EndRelay write elements directly instead of queueing
// them. Replay uses it since its simulated clock outruns any writer.
func (s *JournalSink) SetInline(inline bool) {
	s.inline = inline
}

// Session returns the current session id.
func (s *JournalSink) Session() string {
	return s.session
}

// Dropped returns the number of elements lost to a full queue.
func (s *JournalSink) Dropped() uint64 { return s.dropped.Load() }

// Failed returns the number of elements the writer rejected.
func (s *JournalSink) Failed() uint64 { return s.failed.Load() }

func (s *JournalSink) BeginTx() {}
func (s *JournalSink) EndTx()   {}

func (s *JournalSink) BeginRelay(relay keyer.Paddle) {
	if relay != keyer.Dit && relay != keyer.Dah {
		return
	}
	s.starts[relay] = s.clock.NowMs()
	s.open[relay] = true
}

func (s *JournalSink) EndRelay(relay keyer.Paddle) {
	if relay != keyer.Dit && relay != keyer.Dah || !s.open[relay] {
		return
	}
	s.open[relay] = false
	if s.session == "" || s.closed.Load() {
		return
	}

	e := store.Element{
		SessionID: s.session,
		Ordinal:   s.ordinal,
		Paddle:    relay.String(),
		StartMs:   s.starts[relay],
		EndMs:     s.clock.NowMs(),
	}
	s.ordinal++

	if s.inline {
		s.write(e)
		return
	}

	select {
	case s.queue <- e:
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warn("journal queue full, dropping elements")
		}
	}
}

// Run writes queued elements until Close is called, then drains the queue
// and returns. Cancelling ctx stops without draining.
func (s *JournalSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-s.queue:
			if !ok {
				return nil
			}
			s.write(e)
		}
	}
}

func (s *JournalSink) write(e store.Element) {
	if err := s.w.InsertElement(&e); err != nil {
		s.failed.Add(1)
		s.log.Error("write element", "session", e.SessionID, "ordinal", e.Ordinal, "error", err)
	}
}

// Close stops accepting elements. Run returns once the queue is drained.
// Call it after the engine has stopped.
func (s *JournalSink) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.queue)
	})
}

// Flush writes everything currently queued on the calling goroutine. It is
// for callers that do not use Run, such as replay.
func (s *JournalSink) Flush() {
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(e)
		default:
			return
		}
	}
}

package output

import (
	"keyerd/internal/keyer"
	"keyerd/internal/logging"
)

// LogSink logs every edge at debug level.
type LogSink struct {
	log   *logging.Logger
	clock Clock
}

// NewLogSink creates a LogSink. A nil logger uses the default logger.
func NewLogSink(log *logging.Logger, clock Clock) *LogSink {
	if log == nil {
		log = logging.Default()
	}
	return &LogSink{log: log, clock: clock}
}

func (s *LogSink) now() int64 {
	if s.clock == nil {
		return 0
	}
	return s.clock.NowMs()
}

func (s *LogSink) BeginTx() { s.log.Debug("tx on", "at_ms", s.now()) }
func (s *LogSink) EndTx()   { s.log.Debug("tx off", "at_ms", s.now()) }

func (s *LogSink) BeginRelay(relay keyer.Paddle) {
	s.log.Debug("relay closed", "relay", relay.String(), "at_ms", s.now())
}

func (s *LogSink) EndRelay(relay keyer.Paddle) {
	s.log.Debug("relay opened", "relay", relay.String(), "at_ms", s.now())
}

package output

import (
	"time"

	"keyerd/internal/keyer"
	"keyerd/internal/metrics"
)

// MetricsSink counts elements per paddle and records their lengths.
type MetricsSink struct {
	m      *metrics.KeyerdMetrics
	clock  Clock
	starts [2]int64
}

// NewMetricsSink creates a MetricsSink.
func NewMetricsSink(m *metrics.KeyerdMetrics, clock Clock) *MetricsSink {
	return &MetricsSink{m: m, clock: clock}
}

func (s *MetricsSink) BeginTx() { s.m.Transmitting.Set(1) }
func (s *MetricsSink) EndTx()   { s.m.Transmitting.Set(0) }

func (s *MetricsSink) BeginRelay(relay keyer.Paddle) {
	if relay != keyer.Dit && relay != keyer.Dah {
		return
	}
	s.m.Elements(relay.String()).Inc()
	s.starts[relay] = s.clock.NowMs()
}

func (s *MetricsSink) EndRelay(relay keyer.Paddle) {
	if relay != keyer.Dit && relay != keyer.Dah {
		return
	}
	d := s.clock.NowMs() - s.starts[relay]
	s.m.ElementDuration(relay.String()).ObserveDuration(time.Duration(d) * time.Millisecond)
}

package metrics

import "time"

// KeyerdMetrics holds the daemon's metrics.
type KeyerdMetrics struct {
	registry *Registry

	PaddleEventsTotal  *Counter
	KeyerSwitchesTotal *Counter
	SinkErrorsTotal    *Counter

	CurrentKeyer  *Gauge
	WPM           *Gauge
	Transmitting  *Gauge
	UptimeSeconds *Gauge

	TickLag *Histogram

	started time.Time
}

// New registers the daemon's metrics on registry.
func New(registry *Registry) *KeyerdMetrics {
	if registry == nil {
		registry = NewRegistry("keyerd")
	}

	return &KeyerdMetrics{
		registry: registry,

		PaddleEventsTotal: registry.Counter(
			"paddle_events_total",
			"Paddle edges received from the input source",
			nil,
		),
		KeyerSwitchesTotal: registry.Counter(
			"keyer_switches_total",
			"Number of keyer selections",
			nil,
		),
		SinkErrorsTotal: registry.Counter(
			"sink_errors_total",
			"Write errors in transmitter sinks",
			nil,
		),

		CurrentKeyer: registry.Gauge(
			"keyer",
			"Selected keyer number, 0 for passthrough",
			nil,
		),
		WPM: registry.Gauge(
			"wpm",
			"Configured sending speed",
			nil,
		),
		Transmitting: registry.Gauge(
			"transmitting",
			"1 while any relay is closed",
			nil,
		),
		UptimeSeconds: registry.Gauge(
			"uptime_seconds",
			"Seconds since the daemon started",
			nil,
		),

		TickLag: registry.Histogram(
			"tick_lag_seconds",
			"How late engine ticks fire",
			nil,
			LagBuckets,
		),

		started: time.Now(),
	}
}

// Registry returns the underlying registry.
func (m *KeyerdMetrics) Registry() *Registry {
	return m.registry
}

// Elements returns the elements_total counter for a paddle.
func (m *KeyerdMetrics) Elements(paddle string) *Counter {
	return m.registry.Counter(
		"elements_total",
		"Relay closures by paddle",
		Labels{"paddle": paddle},
	)
}

// ElementDuration returns the element length histogram for a paddle.
func (m *KeyerdMetrics) ElementDuration(paddle string) *Histogram {
	return m.registry.Histogram(
		"element_duration_seconds",
		"Length of closed relay intervals",
		Labels{"paddle": paddle},
		ElementBuckets,
	)
}

// UpdateUptime refreshes the uptime gauge.
func (m *KeyerdMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

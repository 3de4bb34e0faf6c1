// Package metrics provides Prometheus-compatible metrics for keyerd.
//
// Counters, gauges and histograms are registered by name and label set and
// rendered in the Prometheus text exposition format, or as JSON.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// TypeCounter is a monotonically increasing counter.
	TypeCounter MetricType = iota
	// TypeGauge is a value that can go up and down.
	TypeGauge
	// TypeHistogram is a distribution of values.
	TypeHistogram
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels.
type Labels map[string]string

// String renders labels as {k="v",...} with sorted keys.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	return "{" + l.pairs() + "}"
}

func (l Labels) pairs() string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, l[k]))
	}
	return strings.Join(parts, ",")
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	labels Labels
	value  atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current value.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	labels Labels
	value  atomic.Int64
}

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// ElementBuckets cover Morse element lengths in seconds, from a 60 wpm
// dit to a 5 wpm dah.
var ElementBuckets = []float64{0.02, 0.04, 0.06, 0.1, 0.15, 0.25, 0.5, 1}

// LagBuckets cover engine tick lateness in seconds.
var LagBuckets = []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	i := sort.SearchFloat64s(h.buckets, v)
	h.counts[i]++
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

type family struct {
	name       string
	help       string
	kind       MetricType
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// Registry holds all registered metrics, grouped into families by name.
type Registry struct {
	mu        sync.RWMutex
	families  map[string]*family
	namespace string
}

// NewRegistry creates a Registry whose metric names are prefixed with
// namespace and an underscore.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		families:  make(map[string]*family),
		namespace: namespace,
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

func (r *Registry) family(name, help string, kind MetricType) *family {
	full := r.fullName(name)
	f, ok := r.families[full]
	if !ok {
		f = &family{
			name:       full,
			help:       help,
			kind:       kind,
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
		r.families[full] = f
	}
	return f
}

// Counter returns the counter for name and labels, registering it on first
// use. Later calls with the same name and labels return the same counter.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.family(name, help, TypeCounter)
	key := labels.String()
	c, ok := f.counters[key]
	if !ok {
		c = &Counter{name: f.name, labels: labels}
		f.counters[key] = c
	}
	return c
}

// Gauge returns the gauge for name and labels, registering it on first use.
func (r *Registry) Gauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.family(name, help, TypeGauge)
	key := labels.String()
	g, ok := f.gauges[key]
	if !ok {
		g = &Gauge{name: f.name, labels: labels}
		f.gauges[key] = g
	}
	return g
}

// Histogram returns the histogram for name and labels, registering it on
// first use with the given buckets.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.family(name, help, TypeHistogram)
	key := labels.String()
	h, ok := f.histograms[key]
	if !ok {
		sorted := append([]float64(nil), buckets...)
		sort.Float64s(sorted)
		h = &Histogram{
			name:    f.name,
			labels:  labels,
			buckets: sorted,
			counts:  make([]uint64, len(sorted)+1),
		}
		f.histograms[key] = h
	}
	return h
}

func (r *Registry) sortedFamilies() []*family {
	out := make([]*family, 0, len(r.families))
	for _, f := range r.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes every metric in Prometheus text format, families
// and label sets in sorted order.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.sortedFamilies() {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind); err != nil {
			return err
		}
		switch f.kind {
		case TypeCounter:
			for _, k := range sortedKeys(f.counters) {
				c := f.counters[k]
				fmt.Fprintf(w, "%s%s %d\n", f.name, k, c.Value())
			}
		case TypeGauge:
			for _, k := range sortedKeys(f.gauges) {
				g := f.gauges[k]
				fmt.Fprintf(w, "%s%s %d\n", f.name, k, g.Value())
			}
		case TypeHistogram:
			for _, k := range sortedKeys(f.histograms) {
				writeHistogram(w, f.histograms[k])
			}
		}
	}
	return nil
}

func writeHistogram(w io.Writer, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := "{"
	if len(h.labels) > 0 {
		prefix = "{" + h.labels.pairs() + ","
	}

	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket%sle=\"%g\"} %d\n", h.name, prefix, bound, cumulative)
	}
	cumulative += h.counts[len(h.buckets)]
	fmt.Fprintf(w, "%s_bucket%sle=\"+Inf\"} %d\n", h.name, prefix, cumulative)
	fmt.Fprintf(w, "%s_sum%s %g\n", h.name, h.labels.String(), h.sum)
	fmt.Fprintf(w, "%s_count%s %d\n", h.name, h.labels.String(), h.count)
}

// Snapshot returns every counter and gauge value keyed by name plus labels,
// and histogram counts under name_count.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]any)
	for _, f := range r.families {
		for k, c := range f.counters {
			snap[f.name+k] = c.Value()
		}
		for k, g := range f.gauges {
			snap[f.name+k] = g.Value()
		}
		for k, h := range f.histograms {
			snap[f.name+"_count"+k] = h.Count()
		}
	}
	return snap
}

// WriteJSON writes Snapshot as indented JSON.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}

// HTTPHandler serves JSON when the client asks for it and Prometheus text
// otherwise.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

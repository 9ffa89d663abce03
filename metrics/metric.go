// Package metrics implements the process-wide metrics registry (§4.4):
// counters, gauges, histograms, and reservoir-sampled percentile
// histograms, exported as JSON or Prometheus text. Counters and gauges are
// lock-free; the percentile reservoir uses a mutex since it is cold
// relative to the counter hot path (§5).
//
// Grounded on the teacher's control/metrics.go (a bare name->value map)
// expanded to the typed, compound-keyed registry spec.md §3/§4.4 describes,
// and wired to github.com/prometheus/client_golang through the Collector
// adapter in collector.go, which exposes a whole Registry as a
// prometheus.Collector (nabbar-golib/go.mod pulls in
// client_golang; its prometheus_*_test.go files show the registration-style
// API this package mirrors).
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Kind identifies a metric's shape.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
	KindPercentileHistogram
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	case KindPercentileHistogram:
		return "percentile_histogram"
	case KindTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Label is one key/value pair attached to a metric.
type Label struct {
	Key   string
	Value string
}

// Labels is a set of Label, always stored and compared in sorted order so
// the compound key (name + labels) is a stable registry lookup key.
type Labels []Label

func sortedLabels(labels []Label) Labels {
	out := make(Labels, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (l Labels) key() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	for _, lbl := range l {
		b.WriteByte(',')
		b.WriteString(lbl.Key)
		b.WriteByte('=')
		b.WriteString(lbl.Value)
	}
	return b.String()
}

func compoundKey(name string, labels Labels) string {
	return name + labels.key()
}

// Metric is the common surface every concrete metric type implements.
type Metric interface {
	Name() string
	Kind() Kind
	Labels() Labels
}

type base struct {
	name   string
	kind   Kind
	labels Labels
}

func (b *base) Name() string  { return b.name }
func (b *base) Kind() Kind    { return b.kind }
func (b *base) Labels() Labels { return b.labels }

// Counter is a monotonically increasing value, lock-free on the hot path.
type Counter struct {
	base
	value atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by delta, which must be non-negative.
func (c *Counter) Add(delta uint64) { c.value.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is an arbitrary-direction double value, updated via a CAS loop for
// non-integer adds so concurrent writers never lose an update.
type Gauge struct {
	base
	bits atomic.Uint64
}

// Set assigns v.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// Add atomically adds delta to the gauge.
func (g *Gauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		newV := math.Float64frombits(old) + delta
		if g.bits.CompareAndSwap(old, math.Float64bits(newV)) {
			return
		}
	}
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 { return math.Float64frombits(g.bits.Load()) }

// Histogram tracks count and sum only (no percentile reservoir); use
// PercentileHistogram when quantiles are needed.
type Histogram struct {
	base
	count atomic.Uint64
	sumBits atomic.Uint64
}

// Observe records one sample.
func (h *Histogram) Observe(v float64) {
	h.count.Add(1)
	for {
		old := h.sumBits.Load()
		newV := math.Float64frombits(old) + v
		if h.sumBits.CompareAndSwap(old, math.Float64bits(newV)) {
			return
		}
	}
}

// CountValue returns the number of observations.
func (h *Histogram) CountValue() uint64 { return h.count.Load() }

// Sum returns the running sum of observations.
func (h *Histogram) Sum() float64 { return math.Float64frombits(h.sumBits.Load()) }

const reservoirSize = 1000

// PercentileHistogram additionally keeps a fixed-size reservoir of
// observations for p50/p90/p95/p99 estimation. Observe is O(1) (mutex +
// rotating-index write); querying a percentile sorts a copy of the
// reservoir lazily, and the cached quantiles are invalidated on every
// observe (§4.4).
type PercentileHistogram struct {
	Histogram

	mu        sync.Mutex
	reservoir [reservoirSize]float64
	filled    int
	nextIdx   int
	dirty     bool
	sorted    []float64
}

// Observe records one sample into the reservoir and the running count/sum.
func (p *PercentileHistogram) Observe(v float64) {
	p.Histogram.Observe(v)

	p.mu.Lock()
	p.reservoir[p.nextIdx] = v
	p.nextIdx = (p.nextIdx + 1) % reservoirSize
	if p.filled < reservoirSize {
		p.filled++
	}
	p.dirty = true
	p.mu.Unlock()
}

// Quantile returns the estimated value at quantile q in [0, 1], sorting a
// fresh copy of the reservoir if observations occurred since the last call.
func (p *PercentileHistogram) Quantile(q float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filled == 0 {
		return 0
	}
	if p.dirty {
		p.sorted = append(p.sorted[:0], p.reservoir[:p.filled]...)
		sort.Float64s(p.sorted)
		p.dirty = false
	}
	idx := int(q * float64(len(p.sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.sorted) {
		idx = len(p.sorted) - 1
	}
	return p.sorted[idx]
}

// Percentiles returns the standard p50/p90/p95/p99 set in one lock
// acquisition.
func (p *PercentileHistogram) Percentiles() (p50, p90, p95, p99 float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filled == 0 {
		return 0, 0, 0, 0
	}
	if p.dirty {
		p.sorted = append(p.sorted[:0], p.reservoir[:p.filled]...)
		sort.Float64s(p.sorted)
		p.dirty = false
	}
	at := func(q float64) float64 {
		idx := int(q * float64(len(p.sorted)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(p.sorted) {
			idx = len(p.sorted) - 1
		}
		return p.sorted[idx]
	}
	return at(0.5), at(0.9), at(0.95), at(0.99)
}

// Timer is a convenience wrapper recording durations (seconds) into a
// PercentileHistogram.
type Timer struct {
	PercentileHistogram
}

// Start returns a function that, when called, records the elapsed time
// since Start was called.
func (t *Timer) Start(now func() float64) func() {
	begin := now()
	return func() {
		t.Observe(now() - begin)
	}
}

// Package memory implements the heap-pressure state machine that gates new
// work under sustained memory pressure (§4.5). It is grounded on the
// teacher's control/metrics.go atomic-state pattern, generalized from a
// single gauge to a three-state threshold machine and a pressure callback.
package memory

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/metrics"
)

// State is the coarse heap-pressure classification.
type State int32

const (
	Normal State = iota
	Pressure
	Critical
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Pressure:
		return "pressure"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// PressureAction selects what Monitor.Check does when it observes Pressure
// or Critical.
type PressureAction int

const (
	ActionNone PressureAction = iota
	ActionGcCollect
	ActionLogOnly
	ActionCustom
)

// Config configures a Monitor. Ratios are fractions of MaxHeapBytes.
type Config struct {
	MaxHeapBytes        uint64
	HighWaterRatio      float64
	CriticalWaterRatio  float64
	PressureAction      PressureAction
	MinGCInterval       time.Duration
	BypassPaths         []string
	RetryAfterSeconds   int
	// CustomAction is invoked on every transition when PressureAction is
	// ActionCustom or ActionLogOnly. It receives the new state.
	CustomAction func(State)
}

// WithDefaults fills zero-valued fields with the defaults from §4.5.
func (c Config) WithDefaults() Config {
	if c.HighWaterRatio == 0 {
		c.HighWaterRatio = 0.8
	}
	if c.CriticalWaterRatio == 0 {
		c.CriticalWaterRatio = 0.95
	}
	if c.MinGCInterval == 0 {
		c.MinGCInterval = 5 * time.Second
	}
	if c.RetryAfterSeconds == 0 {
		c.RetryAfterSeconds = 5
	}
	return c
}

// HeapReader abstracts the source of "heap bytes currently in use" so tests
// can drive Monitor without allocating real heap pressure.
type HeapReader func() uint64

// RuntimeHeapReader reads HeapAlloc from runtime.MemStats.
func RuntimeHeapReader() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// Monitor tracks heap-pressure state across all workers. A single Monitor is
// shared process-wide; its hot fields are atomics so Check can be called
// from any worker's request path without a lock.
type Monitor struct {
	cfg   Config
	clock api.Clock
	read  HeapReader

	state        atomic.Int32
	lastGC       atomic.Int64 // unix nanos of the last collection plus one; 0 = never
	lastTransition atomic.Int64

	pressureEnteredAt atomic.Int64
	criticalEnteredAt atomic.Int64
	pressureNanos     atomic.Int64
	criticalNanos     atomic.Int64

	collections *metrics.Counter
	transitions *metrics.Counter
	rejections  *metrics.Counter
}

// New builds a Monitor. registry supplies the collections/transitions/
// rejections counters (§4.5); clock and read default to SystemClock and
// RuntimeHeapReader when nil.
func New(cfg Config, registry *metrics.Registry, clock api.Clock, read HeapReader) *Monitor {
	if clock == nil {
		clock = api.SystemClock{}
	}
	if read == nil {
		read = RuntimeHeapReader
	}
	m := &Monitor{
		cfg:   cfg.WithDefaults(),
		clock: clock,
		read:  read,
	}
	m.collections = registry.Counter("memory_gc_collections_total")
	m.transitions = registry.Counter("memory_state_transitions_total")
	m.rejections = registry.Counter("memory_rejections_total")
	now := clock.Now().UnixNano()
	m.lastTransition.Store(now)
	return m
}

// State returns the current classification.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Check reads current heap usage, reclassifies against the configured water
// marks, and performs the configured pressure action: ActionLogOnly and
// ActionCustom call CustomAction on a state transition, while
// ActionGcCollect collects on any non-Normal check once MinGCInterval has
// passed since the last collection. It returns the (possibly unchanged)
// state.
func (m *Monitor) Check() State {
	used := m.read()
	next := m.classify(used)
	prev := State(m.state.Swap(int32(next)))
	now := m.clock.Now()

	if prev != next {
		m.onTransition(prev, next, now)
	}

	if next != Normal && m.cfg.PressureAction == ActionGcCollect {
		m.maybeCollect(now)
	}
	return next
}

func (m *Monitor) classify(used uint64) State {
	if m.cfg.MaxHeapBytes == 0 {
		return Normal
	}
	ratio := float64(used) / float64(m.cfg.MaxHeapBytes)
	switch {
	case ratio >= m.cfg.CriticalWaterRatio:
		return Critical
	case ratio >= m.cfg.HighWaterRatio:
		return Pressure
	default:
		return Normal
	}
}

func (m *Monitor) onTransition(prev, next State, now time.Time) {
	m.transitions.Inc()
	m.lastTransition.Store(now.UnixNano())

	switch prev {
	case Pressure:
		m.pressureNanos.Add(now.UnixNano() - m.pressureEnteredAt.Load())
	case Critical:
		m.criticalNanos.Add(now.UnixNano() - m.criticalEnteredAt.Load())
	}
	switch next {
	case Pressure:
		m.pressureEnteredAt.Store(now.UnixNano())
	case Critical:
		m.criticalEnteredAt.Store(now.UnixNano())
	}

	if m.cfg.PressureAction == ActionLogOnly || m.cfg.PressureAction == ActionCustom {
		if m.cfg.CustomAction != nil {
			m.cfg.CustomAction(next)
		}
	}
}

func (m *Monitor) maybeCollect(now time.Time) {
	last := m.lastGC.Load()
	if last != 0 && now.Sub(time.Unix(0, last-1)) < m.cfg.MinGCInterval {
		return
	}
	if !m.lastGC.CompareAndSwap(last, now.UnixNano()+1) {
		return
	}
	runtime.GC()
	m.collections.Inc()
}

// TimeInState returns cumulative wall-clock time spent in Pressure and
// Critical, including the current (still-open) span if applicable.
func (m *Monitor) TimeInState() (pressure, critical time.Duration) {
	now := m.clock.Now().UnixNano()
	p := m.pressureNanos.Load()
	c := m.criticalNanos.Load()
	if m.State() == Pressure {
		p += now - m.pressureEnteredAt.Load()
	}
	if m.State() == Critical {
		c += now - m.criticalEnteredAt.Load()
	}
	return time.Duration(p), time.Duration(c)
}

// Rejections returns the count of requests short-circuited by the
// middleware form due to Critical pressure.
func (m *Monitor) Rejections() uint64 {
	return m.rejections.Value()
}

func (m *Monitor) recordRejection() {
	m.rejections.Inc()
}

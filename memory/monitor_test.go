package memory

import (
	"testing"
	"time"

	"github.com/aurora-http/aurora/metrics"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMonitor(t *testing.T, used uint64, cfg Config) (*Monitor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(0, 0)}
	reader := func() uint64 { return used }
	return New(cfg, metrics.NewRegistry(), clock, reader), clock
}

func TestMonitorClassifiesNormal(t *testing.T) {
	m, _ := newTestMonitor(t, 100, Config{MaxHeapBytes: 1000})
	if got := m.Check(); got != Normal {
		t.Fatalf("expected Normal, got %v", got)
	}
}

func TestMonitorClassifiesPressure(t *testing.T) {
	m, _ := newTestMonitor(t, 850, Config{MaxHeapBytes: 1000})
	if got := m.Check(); got != Pressure {
		t.Fatalf("expected Pressure, got %v", got)
	}
}

func TestMonitorClassifiesCritical(t *testing.T) {
	m, _ := newTestMonitor(t, 960, Config{MaxHeapBytes: 1000})
	if got := m.Check(); got != Critical {
		t.Fatalf("expected Critical, got %v", got)
	}
}

func TestMonitorTransitionsCounterIncrements(t *testing.T) {
	m, _ := newTestMonitor(t, 850, Config{MaxHeapBytes: 1000})
	m.Check()
	if got := m.transitions.Value(); got != 1 {
		t.Fatalf("expected 1 transition on first check, got %d", got)
	}
	m.Check()
	if got := m.transitions.Value(); got != 1 {
		t.Fatalf("expected no further transition while state is stable, got %d", got)
	}
}

func TestMonitorGcCollectRespectsMinInterval(t *testing.T) {
	m, clock := newTestMonitor(t, 960, Config{
		MaxHeapBytes:   1000,
		PressureAction: ActionGcCollect,
		MinGCInterval:  time.Minute,
	})
	m.Check()
	if got := m.collections.Value(); got != 1 {
		t.Fatalf("expected first check to collect, got %d collections", got)
	}
	m.Check()
	if got := m.collections.Value(); got != 1 {
		t.Fatalf("expected second check within MinGCInterval to skip collection, got %d", got)
	}
	clock.advance(2 * time.Minute)
	m.Check()
	if got := m.collections.Value(); got != 2 {
		t.Fatalf("expected collection after MinGCInterval elapsed, got %d", got)
	}
}

func TestMonitorCustomActionInvokedOnTransition(t *testing.T) {
	var seen []State
	m, _ := newTestMonitor(t, 960, Config{
		MaxHeapBytes:   1000,
		PressureAction: ActionCustom,
		CustomAction:   func(s State) { seen = append(seen, s) },
	})
	m.Check()
	if len(seen) != 1 || seen[0] != Critical {
		t.Fatalf("expected custom action called once with Critical, got %v", seen)
	}
}

func TestBypassGlobMatchesPrefix(t *testing.T) {
	if !bypassed("/healthz/live", []string{"/healthz*"}) {
		t.Fatalf("expected prefix glob to match")
	}
	if bypassed("/api/orders", []string{"/healthz*"}) {
		t.Fatalf("expected non-matching path to be rejected")
	}
}

func TestBypassExactMatch(t *testing.T) {
	if !bypassed("/ping", []string{"/ping"}) {
		t.Fatalf("expected exact match")
	}
}

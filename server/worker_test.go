package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/conn"
	"github.com/aurora-http/aurora/internal/testkit"
	"github.com/aurora-http/aurora/metrics"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

// TestWorkerForceStopClosesRemainingConnections checks the §4.7 step-5
// abandoned-drain path directly: forceCloseAll must close and evict every
// connection a worker still owns, regardless of each connection's
// in-flight state. Driven at the unit level (rather than through a real
// blocking handler and Run's select loop) because this model is
// cooperative per-worker: a handler parked inside a worker's own goroutine
// cannot be interrupted by anything short of returning from Run.
func TestWorkerForceStopClosesRemainingConnections(t *testing.T) {
	cfg := DefaultConfig()
	registry := metrics.NewRegistry()
	backpressure := NewBackpressure(cfg, registry)
	shuttingDown := &atomic.Bool{}
	clock := testkit.NewFakeClock(time.Unix(0, 0))

	w, err := newWorker(0, cfg, registry, clock, shuttingDown, backpressure, func(api.Context) {}, testLogger())
	if err != nil {
		t.Fatalf("newWorker failed: %v", err)
	}

	const fakeCount = 3
	for i := 0; i < fakeCount; i++ {
		backpressure.OnAccept()
		c := conn.New(&testkit.FakeConn{}, w.bufPool, w.connCfg, w.counters, clock, shuttingDown, w.dispatch)
		w.byFd[100+i] = c
	}
	if len(w.byFd) != fakeCount {
		t.Fatalf("expected %d fake connections registered, got %d", fakeCount, len(w.byFd))
	}

	w.forceCloseAll()

	if len(w.byFd) != 0 {
		t.Fatalf("expected forceCloseAll to evict every connection, %d remain", len(w.byFd))
	}
}

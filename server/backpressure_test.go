package server

import (
	"testing"

	"github.com/aurora-http/aurora/metrics"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConnections = 10
	cfg.ConnectionHighWater = 0.8 // overload at 8 active
	cfg.ConnectionLowWater = 0.5  // recovers below 5 active
	cfg.MaxInFlightRequests = 1000
	return cfg
}

// TestBackpressureHysteresis checks the high/low-water asymmetry (§4.7):
// crossing high turns overload on, but it only turns back off once active
// falls below low, not merely below high again.
func TestBackpressureHysteresis(t *testing.T) {
	b := NewBackpressure(testConfig(), metrics.NewRegistry())

	for i := 0; i < 7; i++ {
		b.OnAccept()
	}
	if b.Overloaded() {
		t.Fatalf("expected not overloaded at 7 active connections")
	}

	b.OnAccept() // 8th: crosses high water (8)
	if !b.Overloaded() {
		t.Fatalf("expected overloaded at 8 active connections")
	}

	b.OnConnectionClosed() // down to 7: still above low water (5)
	if !b.Overloaded() {
		t.Fatalf("expected still overloaded at 7 active connections (below high, above low)")
	}

	b.OnConnectionClosed()
	b.OnConnectionClosed() // down to 5: still at, not below, low water
	if !b.Overloaded() {
		t.Fatalf("expected still overloaded at exactly the low-water mark")
	}

	b.OnConnectionClosed() // down to 4: now below low water
	if b.Overloaded() {
		t.Fatalf("expected overload to clear below low-water mark")
	}
}

// TestBackpressureAdmitReject503 checks the default Reject503 behavior:
// Admit declines without shouldQueue once overloaded.
func TestBackpressureAdmitReject503(t *testing.T) {
	cfg := testConfig()
	cfg.OverloadBehavior = Reject503
	b := NewBackpressure(cfg, metrics.NewRegistry())

	for i := 0; i < 8; i++ {
		b.OnAccept()
	}
	admit, shouldQueue := b.Admit()
	if admit || shouldQueue {
		t.Fatalf("expected (false, false) once overloaded under Reject503, got (%v, %v)", admit, shouldQueue)
	}
	if b.Behavior() != Reject503 {
		t.Fatalf("expected Behavior() to report Reject503")
	}
}

// TestBackpressureQueueRequestEnqueuesUntilCapacity checks the QueueRequest
// behavior: Admit signals shouldQueue while the pending queue has room, and
// falls back to outright rejection once ConnectionQueueSize is reached.
func TestBackpressureQueueRequestEnqueuesUntilCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.OverloadBehavior = QueueRequest
	cfg.ConnectionQueueSize = 2
	b := NewBackpressure(cfg, metrics.NewRegistry())

	for i := 0; i < 8; i++ {
		b.OnAccept()
	}

	for i := 0; i < 2; i++ {
		admit, shouldQueue := b.Admit()
		if admit || !shouldQueue {
			t.Fatalf("expected (false, true) while queue has room, got (%v, %v)", admit, shouldQueue)
		}
		b.Enqueue(i)
	}

	admit, shouldQueue := b.Admit()
	if admit || shouldQueue {
		t.Fatalf("expected (false, false) once pending queue is full, got (%v, %v)", admit, shouldQueue)
	}

	if item := b.Dequeue(); item != 0 {
		t.Fatalf("expected FIFO dequeue order, got %v", item)
	}
}

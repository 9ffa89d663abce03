package server

import (
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/aurora-http/aurora/metrics"
)

// Backpressure tracks active connections and in-flight requests as atomics
// and flips a hysteretic overload flag per §4.7: it turns on when active
// crosses high-water * max and only turns back off once active falls below
// low-water * max, preventing thrashing at the boundary.
type Backpressure struct {
	cfg Config

	activeConnections   atomic.Int64
	inFlightRequests    atomic.Int64
	overloaded          atomic.Bool

	// pending backs the QueueRequest behavior: accepted connections held
	// until capacity frees up, bounded by ConnectionQueueSize. Grounded on
	// the teacher's use of a ring/queue abstraction for backlog management;
	// github.com/eapache/queue gives an auto-growing ring buffer so the
	// bound is enforced explicitly here rather than relying on its growth.
	pending *queue.Queue

	rejectedOverload       *metrics.Counter
	rejectedInFlight       *metrics.Counter
	rejectedDuringShutdown *metrics.Counter
	overloadTransitions    *metrics.Counter
}

// NewBackpressure builds a Backpressure bound to cfg, registering its
// counters on registry.
func NewBackpressure(cfg Config, registry *metrics.Registry) *Backpressure {
	return &Backpressure{
		cfg:                    cfg,
		pending:                queue.New(),
		rejectedOverload:       registry.Counter("rejected_overload_total"),
		rejectedInFlight:       registry.Counter("rejected_in_flight_total"),
		rejectedDuringShutdown: registry.Counter("rejected_during_shutdown_total"),
		overloadTransitions:    registry.Counter("overload_transitions_total"),
	}
}

// OnAccept records a newly accepted connection and reevaluates the
// hysteresis flag.
func (b *Backpressure) OnAccept() {
	b.activeConnections.Add(1)
	b.reevaluate()
}

// OnConnectionClosed records a connection closing.
func (b *Backpressure) OnConnectionClosed() {
	b.activeConnections.Add(-1)
	b.reevaluate()
}

// OnRequestStart/OnRequestDone track in-flight requests for
// MaxInFlightRequests enforcement.
func (b *Backpressure) OnRequestStart() { b.inFlightRequests.Add(1) }
func (b *Backpressure) OnRequestDone()  { b.inFlightRequests.Add(-1) }

func (b *Backpressure) reevaluate() {
	active := b.activeConnections.Load()
	max := int64(b.cfg.MaxConnections)
	high := int64(float64(max) * b.cfg.ConnectionHighWater)
	low := int64(float64(max) * b.cfg.ConnectionLowWater)

	if !b.overloaded.Load() && active >= high {
		if b.overloaded.CompareAndSwap(false, true) {
			b.overloadTransitions.Inc()
		}
	} else if b.overloaded.Load() && active < low {
		if b.overloaded.CompareAndSwap(true, false) {
			b.overloadTransitions.Inc()
		}
	}
}

// Overloaded reports the current hysteresis flag.
func (b *Backpressure) Overloaded() bool { return b.overloaded.Load() }

// Behavior returns the configured overload-shedding strategy, so the
// acceptor loop can decide how to reject a connection Admit declined.
func (b *Backpressure) Behavior() OverloadBehavior { return b.cfg.OverloadBehavior }

// RetryAfterSeconds returns the configured Retry-After value for 503
// responses.
func (b *Backpressure) RetryAfterSeconds() int { return b.cfg.RetryAfterSeconds }

// InFlightAtLimit reports whether current_in_flight_requests has reached
// max_in_flight_requests.
func (b *Backpressure) InFlightAtLimit() bool {
	return b.inFlightRequests.Load() >= int64(b.cfg.MaxInFlightRequests)
}

// Admit decides whether a freshly accepted connection may proceed
// immediately. It returns (admit, shouldQueue): when the server is
// overloaded or at the in-flight limit, behavior follows cfg.OverloadBehavior.
func (b *Backpressure) Admit() (admit, shouldQueue bool) {
	if !b.Overloaded() && !b.InFlightAtLimit() {
		return true, false
	}
	switch b.cfg.OverloadBehavior {
	case QueueRequest:
		if b.pending.Length() < b.cfg.ConnectionQueueSize {
			return false, true
		}
		b.rejectedOverload.Inc()
		return false, false
	case CloseConnection:
		b.rejectedOverload.Inc()
		return false, false
	default: // Reject503
		b.rejectedOverload.Inc()
		return false, false
	}
}

// Enqueue holds item (an accepted connection awaiting capacity) for the
// QueueRequest behavior.
func (b *Backpressure) Enqueue(item any) { b.pending.Add(item) }

// Dequeue pops the oldest queued item, or nil if empty.
func (b *Backpressure) Dequeue() any {
	if b.pending.Length() == 0 {
		return nil
	}
	return b.pending.Remove()
}

// RejectDuringShutdown increments the shutdown-rejection counter.
func (b *Backpressure) RejectDuringShutdown() { b.rejectedDuringShutdown.Inc() }

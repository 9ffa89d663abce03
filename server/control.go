package server

import (
	"sync"

	"github.com/aurora-http/aurora/api"
)

// control implements api.Control over this server's metrics registry and a
// set of named debug probes an embedding application can register (§6
// external interface, mirroring the teacher's control-adapter surface).
type control struct {
	srv *Server

	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Control = (*control)(nil)

func newControl(srv *Server) *control {
	return &control{srv: srv, probes: make(map[string]func() any)}
}

// Stats returns a JSON-serializable snapshot of every registered metric plus
// the live backpressure and memory-monitor counters.
func (c *control) Stats() map[string]any {
	pressureNanos, criticalNanos := c.srv.Monitor.TimeInState()
	metricsJSON, err := c.srv.Metrics.ExportJSON()
	stats := map[string]any{
		"active_connections": c.srv.backpressure.activeConnections.Load(),
		"in_flight_requests": c.srv.backpressure.inFlightRequests.Load(),
		"overloaded":         c.srv.backpressure.Overloaded(),
		"memory_state":       c.srv.Monitor.State().String(),
		"memory_rejections":  c.srv.Monitor.Rejections(),
		"pressure_nanos":     pressureNanos.Nanoseconds(),
		"critical_nanos":     criticalNanos.Nanoseconds(),
	}
	if err == nil {
		stats["metrics_json"] = string(metricsJSON)
	}
	return stats
}

// RegisterDebugProbe adds a named function invoked on DumpState.
func (c *control) RegisterDebugProbe(name string, fn func() any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = fn
}

// DumpState runs every registered probe and returns its results alongside
// Stats.
func (c *control) DumpState() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.Stats()
	for name, fn := range c.probes {
		out[name] = fn()
	}
	return out
}

// Package server implements the orchestrator (§4.7): worker pool,
// backpressure, graceful shutdown, hook and typed exception-handler
// dispatch. Grounded on the teacher's highlevel/server.go top-level server
// struct and control/ lifecycle management, generalized from a single
// WebSocket acceptor to N worker event loops each owning its own reactor,
// buffer pool, and metric cache.
package server

import "time"

// OverloadBehavior selects how the orchestrator sheds load once the
// backpressure hysteresis flag is on (§4.7).
type OverloadBehavior int

const (
	Reject503 OverloadBehavior = iota
	CloseConnection
	QueueRequest
)

// Config enumerates the server options from §6, with the listed defaults.
type Config struct {
	Host string
	Port int

	NumWorkers int // 0 = auto (detected core count)

	ConnectionQueueSize int
	ListenBacklog       int

	MaxHeaderSize int
	MaxBodySize   int64

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	KeepAliveTimeout  time.Duration
	ShutdownTimeout   time.Duration

	MaxRequestsPerConnection int

	MaxConnections       int
	ConnectionHighWater  float64
	ConnectionLowWater   float64
	MaxInFlightRequests  int
	OverloadBehavior     OverloadBehavior
	RetryAfterSeconds    int

	DebugMode bool
}

// DefaultConfig returns the §6 baseline configuration.
func DefaultConfig() Config {
	return Config{
		Host:                     "0.0.0.0",
		Port:                     8080,
		NumWorkers:               0,
		ConnectionQueueSize:      4096,
		ListenBacklog:            1024,
		MaxHeaderSize:            64 << 10,
		MaxBodySize:              10 << 20,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
		KeepAliveTimeout:         120 * time.Second,
		MaxRequestsPerConnection: 1000,
		ShutdownTimeout:          30 * time.Second,
		MaxConnections:           10000,
		ConnectionHighWater:      0.8,
		ConnectionLowWater:       0.6,
		MaxInFlightRequests:      1000,
		OverloadBehavior:         Reject503,
		RetryAfterSeconds:        5,
		DebugMode:                false,
	}
}

package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/conn"
	"github.com/aurora-http/aurora/internal/pool"
	"github.com/aurora-http/aurora/internal/reactor"
	"github.com/aurora-http/aurora/internal/ring"
	"github.com/aurora-http/aurora/metrics"
)

// sweepInterval bounds how stale a read/write/idle timeout can fire; the
// worker checks every connection it owns against the clock this often
// instead of arming one OS timer per connection (§4.7).
const sweepInterval = 250 * time.Millisecond

// incomingCapacity bounds the ring buffer handing accepted fds from the
// single acceptor goroutine to this worker. Sized well above a single
// sweepInterval's worth of accepts under the default ConnectionQueueSize.
const incomingCapacity = 256

// worker is one event loop with its own poller, buffer pool, connection
// object pool and metric cache — all thread-local, touched by exactly one
// goroutine, per §4.7 and §5.
type worker struct {
	id int

	poller   reactor.Poller
	bufPool  *pool.BufferPool
	connPool *pool.ObjectPool[*conn.Connection]
	cache    *metrics.Cache

	connCfg  conn.Config
	counters conn.Counters
	clock    api.Clock
	dispatch conn.Dispatcher

	shuttingDown *atomic.Bool
	backpressure *Backpressure
	log          zerolog.Logger

	// incoming hands accepted fds from the single acceptor goroutine
	// (producer) to this worker's own Run loop (sole consumer) without a
	// channel allocation or lock on the accept hot path (§4.7, §5).
	incoming *ring.Ring[int]
	byFd     map[int]*conn.Connection

	draining  atomic.Bool
	quit      chan struct{} // closed by ForceStop: abandon drain, close everything now
	quitOnce  sync.Once
	stopped   chan struct{} // closed when Run returns
}

func newWorker(id int, cfg Config, registry *metrics.Registry, clock api.Clock, shuttingDown *atomic.Bool, backpressure *Backpressure, dispatch conn.Dispatcher, log zerolog.Logger) (*worker, error) {
	poller, err := reactor.NewPoller(1024)
	if err != nil {
		return nil, err
	}
	cache := metrics.NewCache(registry)
	connCfg := conn.Config{
		MaxHeaderSize:            cfg.MaxHeaderSize,
		MaxBodySize:              cfg.MaxBodySize,
		MaxRequestsPerConnection: cfg.MaxRequestsPerConnection,
		ReadTimeout:              cfg.ReadTimeout,
		WriteTimeout:             cfg.WriteTimeout,
		IdleTimeout:              cfg.KeepAliveTimeout,
		ShutdownDeadline:         cfg.ShutdownTimeout,
		ArenaSize:                8 << 10,
		InitialReadBucket:        api.Bucket4K,
	}
	counters := conn.Counters{
		RejectedHeadersTooLarge: cache.Counter("connection_rejected_headers_too_large_total"),
		RejectedBodyTooLarge:    cache.Counter("connection_rejected_body_too_large_total"),
		Errors:                  cache.Counter("connection_errors_total"),
		RequestsTotal:           cache.Counter("requests_total"),
	}

	w := &worker{
		id:           id,
		poller:       poller,
		bufPool:      pool.New(cfg.DebugMode),
		cache:        cache,
		connCfg:      connCfg,
		counters:     counters,
		clock:        clock,
		dispatch:     dispatch,
		shuttingDown: shuttingDown,
		backpressure: backpressure,
		log:          log.With().Int("worker", id).Logger(),
		incoming:     ring.New[int](incomingCapacity),
		byFd:         make(map[int]*conn.Connection),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	w.connPool = pool.NewObjectPool[*conn.Connection](256, func() *conn.Connection {
		return conn.New(conn.Unbound, w.bufPool, w.connCfg, w.counters, w.clock, w.shuttingDown, w.dispatch)
	})
	return w, nil
}

// Submit hands an accepted fd to this worker. It never blocks the acceptor
// loop: the ring is sized generously and the worker drains it every poll
// cycle.
func (w *worker) Submit(fd int) {
	if !w.incoming.Enqueue(fd) {
		// Ring saturated under extreme burst; close the socket rather than
		// block the single acceptor loop indefinitely.
		reactor.Conn{Fd: fd}.Close()
		w.backpressure.OnConnectionClosed()
	}
}

// Run drives the worker's poll loop until Stop marks it draining and every
// owned connection finishes, or ForceStop cuts the drain short. It must run
// on its own goroutine.
func (w *worker) Run() {
	defer close(w.stopped)
	lastSweep := w.clock.Now()
	for {
		select {
		case <-w.quit:
			w.forceCloseAll()
			return
		default:
		}

		w.drainIncoming()

		events, err := w.poller.Wait(sweepInterval)
		if err != nil {
			w.log.Error().Err(err).Msg("poller wait failed")
			continue
		}
		for _, ev := range events {
			c, ok := w.byFd[ev.Fd]
			if !ok {
				continue
			}
			switch ev.Kind {
			case reactor.EventReadable:
				c.OnReadable()
			case reactor.EventWritable:
				c.OnWritable()
			case reactor.EventError, reactor.EventHangup:
				c.Close(errors.New("reactor: connection error or hangup"))
				w.closeConn(ev.Fd, c)
				continue
			}
			w.afterIO(ev.Fd, c)
		}

		now := w.clock.Now()
		if now.Sub(lastSweep) >= sweepInterval {
			w.sweepTimeouts(now)
			lastSweep = now
		}

		if w.draining.Load() {
			w.closeIdleConnections()
			if len(w.byFd) == 0 {
				return
			}
		}
	}
}

// closeIdleConnections drains every connection with no in-flight request
// (§4.6 Draining); ones mid-request are left alone to finish and close
// naturally once shuttingDown forces a non-keep-alive response.
func (w *worker) closeIdleConnections() {
	for fd, c := range w.byFd {
		if c.State() != conn.ReadingHeaders {
			continue
		}
		c.Drain()
		if c.State() == conn.Closed {
			w.closeConn(fd, c)
		}
	}
}

// Stop begins a graceful drain: the acceptor has already stopped handing
// this worker new connections, and Run exits on its own once every
// in-flight connection finishes its current response and closes (§4.7 step
// 4). It does not interrupt anything in progress.
func (w *worker) Stop() { w.draining.Store(true) }

// ForceStop abandons the drain immediately, closing every remaining
// connection. Called by the server once the shutdown deadline elapses.
func (w *worker) ForceStop() { w.quitOnce.Do(func() { close(w.quit) }) }

// Done reports when Run has returned, for the server to wait on during
// shutdown.
func (w *worker) Done() <-chan struct{} { return w.stopped }

func (w *worker) drainIncoming() {
	for {
		fd, ok := w.incoming.Dequeue()
		if !ok {
			return
		}
		w.accept(fd)
	}
}

func (w *worker) accept(fd int) {
	raw := reactor.Conn{Fd: fd}
	c, ok := w.connPool.Acquire()
	if !ok {
		raw.Close()
		w.backpressure.OnConnectionClosed()
		w.log.Warn().Msg("connection object pool exhausted; dropping accepted socket")
		return
	}
	c.Reopen(raw)
	if err := w.poller.Register(fd, true, false); err != nil {
		w.connPool.Release(c)
		raw.Close()
		w.backpressure.OnConnectionClosed()
		return
	}
	w.byFd[fd] = c
}

// afterIO reconciles poller interest with the connection's state after an
// I/O callback: it arms/disarms write-readiness and tears the connection
// down once it reaches Closed (§4.6).
func (w *worker) afterIO(fd int, c *conn.Connection) {
	if c.State() == conn.Closed {
		w.closeConn(fd, c)
		return
	}
	_ = w.poller.Modify(fd, true, c.WantWrite())
}

func (w *worker) closeConn(fd int, c *conn.Connection) {
	w.poller.Remove(fd)
	delete(w.byFd, fd)
	w.backpressure.OnConnectionClosed()
	w.connPool.Release(c)
}

// sweepTimeouts walks every connection this worker owns and expires any
// past its read, write, or idle deadline (§4.6). Owned exclusively by this
// goroutine, so no locking is needed even though it touches every
// Connection in byFd.
func (w *worker) sweepTimeouts(now time.Time) {
	for fd, c := range w.byFd {
		switch {
		case c.IdleExpired(now):
			c.Close(errors.New("conn: idle timeout"))
			w.closeConn(fd, c)
		case c.ReadExpired(now):
			c.Close(errors.New("conn: read timeout"))
			w.closeConn(fd, c)
		case c.WriteExpired(now):
			c.Close(errors.New("conn: write timeout"))
			w.closeConn(fd, c)
		}
	}
}

// forceCloseAll closes every remaining connection immediately, for
// ForceStop's abandoned-drain path (§4.7 step 5: "force-close after
// timeout").
func (w *worker) forceCloseAll() {
	for fd, c := range w.byFd {
		c.Close(errors.New("aurora: forced close on shutdown deadline"))
		w.closeConn(fd, c)
	}
}

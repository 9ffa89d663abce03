package conn

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/arena"
	"github.com/aurora-http/aurora/internal/httpwire"
	"github.com/aurora-http/aurora/internal/reactor"
	"github.com/aurora-http/aurora/metrics"
)

// RawConn is the non-blocking duplex I/O a Connection drives. reactor.Conn
// satisfies it in production; tests substitute an in-memory fake.
type RawConn interface {
	Read(buf []byte) (int, reactor.IOState, error)
	Write(buf []byte) (int, reactor.IOState, error)
	Close() error
}

// Unbound is a placeholder RawConn for connections sitting in the object
// pool's pre-allocated free list before their first Reopen (§4.2: the pool
// pre-allocates n instances at construction, before any socket exists).
var Unbound RawConn = unboundConn{}

type unboundConn struct{}

func (unboundConn) Read([]byte) (int, reactor.IOState, error) {
	return 0, reactor.IOError, errors.New("conn: read on an unbound pooled connection")
}
func (unboundConn) Write([]byte) (int, reactor.IOState, error) {
	return 0, reactor.IOError, errors.New("conn: write on an unbound pooled connection")
}
func (unboundConn) Close() error { return nil }

// Config bounds the resources and limits one Connection enforces (§4.6,
// §9 defaults).
type Config struct {
	MaxHeaderSize            int
	MaxBodySize              int64
	MaxRequestsPerConnection int // 0 = unlimited
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	IdleTimeout              time.Duration
	ShutdownDeadline         time.Duration
	ArenaSize                int
	InitialReadBucket        api.BucketClass
}

// DefaultConfig returns the §9 baseline limits.
func DefaultConfig() Config {
	return Config{
		MaxHeaderSize:            16 << 10,
		MaxBodySize:              10 << 20,
		MaxRequestsPerConnection: 0,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
		IdleTimeout:              60 * time.Second,
		ShutdownDeadline:         10 * time.Second,
		ArenaSize:                8 << 10,
		InitialReadBucket:        api.Bucket4K,
	}
}

// Counters are the per-state-machine-transition metrics (§4.6, §4.7).
type Counters struct {
	RejectedHeadersTooLarge *metrics.Counter
	RejectedBodyTooLarge    *metrics.Counter
	Errors                  *metrics.Counter
	RequestsTotal           *metrics.Counter
}

// Dispatcher runs the middleware pipeline and route handler for one
// request. It is supplied by the server orchestrator so this package has no
// dependency on routing or exception-handler dispatch.
type Dispatcher func(ctx api.Context)

// Connection is the per-TCP-session state machine (§3, §4.6). A Connection
// is owned exclusively by one worker for its entire life; none of its
// fields are synchronized.
type Connection struct {
	raw     RawConn
	bufPool api.BufferPool
	cfg     Config
	counters Counters
	clock   api.Clock
	dispatch Dispatcher

	state State

	readBuf   api.Buffer
	readUsed  int
	writeBuf  api.Buffer
	pendingWrite []byte

	parser api.HTTPParser
	req    api.Request
	resp   api.ResponseWriter
	arena  *arena.Arena
	ctx    *requestContext

	queryParsed bool
	queryParams []api.RouteParam

	requestsServed int
	shuttingDown   *atomic.Bool

	readDeadline, writeDeadline, idleDeadline time.Time
	closeErr error
}

// New constructs a Connection in AcceptPending and immediately arms it into
// ReadingHeaders, per §4.6 ("AcceptPending → ReadingHeaders (on accept;
// read/write deadlines armed)").
func New(raw RawConn, bufPool api.BufferPool, cfg Config, counters Counters, clock api.Clock, shuttingDown *atomic.Bool, dispatch Dispatcher) *Connection {
	if clock == nil {
		clock = api.SystemClock{}
	}
	c := &Connection{
		raw:          raw,
		bufPool:      bufPool,
		cfg:          cfg,
		counters:     counters,
		clock:        clock,
		dispatch:     dispatch,
		state:        AcceptPending,
		parser:       httpwire.New(),
		arena:        arena.New(cfg.ArenaSize),
		shuttingDown: shuttingDown,
	}
	c.ctx = &requestContext{conn: c, index: -1}
	c.armDeadlines()
	c.state = ReadingHeaders
	return c
}

func (c *Connection) State() State { return c.state }

// Reopen rebinds a pooled Connection to a freshly accepted raw connection,
// for reuse from the connection object pool (§4.2) instead of allocating a
// new Connection per TCP session. All per-session state is reset.
func (c *Connection) Reopen(raw RawConn) {
	c.raw = raw
	c.state = AcceptPending
	c.readBuf = api.Buffer{}
	c.readUsed = 0
	c.writeBuf = api.Buffer{}
	c.pendingWrite = nil
	c.requestsServed = 0
	c.closeErr = nil
	c.parser.Reset()
	c.arena.Reset()
	c.queryParsed = false
	c.queryParams = c.queryParams[:0]
	c.ctx.reset()
	c.armDeadlines()
	c.state = ReadingHeaders
}

func (c *Connection) armDeadlines() {
	now := c.clock.Now()
	c.readDeadline = now.Add(c.cfg.ReadTimeout)
	c.writeDeadline = now.Add(c.cfg.WriteTimeout)
}

func (c *Connection) armIdleDeadline() {
	c.idleDeadline = c.clock.Now().Add(c.cfg.IdleTimeout)
}

// WantWrite reports whether the connection has a response queued to flush,
// for the worker's readiness registration.
func (c *Connection) WantWrite() bool {
	return c.state == WritingResponse && len(c.pendingWrite) > 0
}

// OnReadable is driven by the worker when the poller reports the fd
// readable. It reads available bytes, feeds the parser, and advances the
// state machine as far as it can without blocking.
func (c *Connection) OnReadable() {
	switch c.state {
	case ReadingHeaders, ReadingBody:
	default:
		return
	}

	if c.readBuf.Data == nil {
		c.readBuf = c.bufPool.AcquireBucket(c.cfg.InitialReadBucket)
	}

	for {
		if c.readUsed == c.readBuf.Len() {
			if !c.growReadBuffer() {
				c.rejectHeadersTooLarge()
				return
			}
		}
		n, ioState, err := c.raw.Read(c.readBuf.Data[c.readUsed:])
		switch ioState {
		case reactor.IOWouldBlock:
			return
		case reactor.IOEof:
			c.closeErr = errors.New("conn: eof mid-message")
			c.transitionClosed()
			return
		case reactor.IOError:
			c.closeErr = err
			c.transitionClosed()
			return
		case reactor.IOOk:
			if n == 0 {
				return
			}
			c.readUsed += n
			if !c.feedParser(n) {
				return
			}
		}
	}
}

// feedParser hands newly-read bytes to the parser and reacts to its
// outcome. It returns false when the read loop in OnReadable should stop
// (message complete, parse error, or the body limit was exceeded).
func (c *Connection) feedParser(n int) bool {
	start := c.readUsed - n
	result := c.parser.Parse(c.readBuf.Data[start:c.readUsed])

	if c.state == ReadingHeaders && !c.parser.HeadersComplete() &&
		c.cfg.MaxHeaderSize > 0 && c.readUsed > c.cfg.MaxHeaderSize {
		c.rejectHeadersTooLarge()
		return false
	}

	if c.state == ReadingHeaders && c.parser.HeadersComplete() {
		if c.parser.ContentLength() > c.cfg.MaxBodySize {
			c.rejectBodyTooLarge()
			return false
		}
		c.state = ReadingBody
	}
	if c.state == ReadingBody && int64(c.readUsed) > c.cfg.MaxBodySize && c.parser.ContentLength() < 0 {
		c.rejectBodyTooLarge()
		return false
	}

	switch result.Outcome {
	case api.ParseNeedMore:
		return true
	case api.ParseError:
		c.respondAndClose(result.Code)
		return false
	case api.ParseComplete:
		c.beginDispatch()
		return false
	}
	return true
}

// growReadBuffer upgrades the read buffer to the next larger bucket,
// copying unconsumed bytes. It returns false once Bucket256K is exhausted.
func (c *Connection) growReadBuffer() bool {
	if c.readBuf.Class >= api.Bucket256K {
		return false
	}
	next := c.readBuf.Class + 1
	bigger := c.bufPool.AcquireBucket(next)
	copy(bigger.Data, c.readBuf.Data[:c.readUsed])
	c.bufPool.Release(c.readBuf)
	c.readBuf = bigger
	return true
}

func (c *Connection) rejectHeadersTooLarge() {
	if c.counters.RejectedHeadersTooLarge != nil {
		c.counters.RejectedHeadersTooLarge.Inc()
	}
	c.respondAndClose(431)
}

func (c *Connection) rejectBodyTooLarge() {
	if c.counters.RejectedBodyTooLarge != nil {
		c.counters.RejectedBodyTooLarge.Inc()
	}
	c.respondAndClose(413)
}

func (c *Connection) respondAndClose(code int) {
	c.resp.Reset()
	c.resp.WriteHeader(code)
	c.resp.Header.Set("Connection", "close")
	c.queueWrite(true)
}

// beginDispatch transitions Dispatching → runs the pipeline synchronously
// (the fiber model assumes handlers do not block) → WritingResponse.
func (c *Connection) beginDispatch() {
	c.state = Dispatching
	c.populateRequest()

	if c.counters.RequestsTotal != nil {
		c.counters.RequestsTotal.Inc()
	}

	c.resp.Reset()
	c.ctx.reset()
	c.dispatch(c.ctx)

	c.state = WritingResponse
	closeAfter := !c.keepAliveAllowed()
	c.queueWrite(closeAfter)
}

func (c *Connection) populateRequest() {
	c.req.Method = c.parser.Method()
	c.req.Path = c.parser.Path()
	c.req.Query = c.parser.Query()
	c.req.Version = c.parser.Version()
	c.req.Header = *c.parser.Header()
	c.req.Body = c.parser.Body()
	c.req.KeepAlive = c.parser.KeepAlive()
	c.req.MessageComplete = true
}

// keepAliveAllowed implements the §4.6 keep-alive policy: all four
// conditions must hold for the connection to be reused.
func (c *Connection) keepAliveAllowed() bool {
	if !c.req.KeepAlive {
		return false
	}
	if c.cfg.MaxRequestsPerConnection != 0 && c.requestsServed+1 >= c.cfg.MaxRequestsPerConnection {
		return false
	}
	if c.shuttingDown != nil && c.shuttingDown.Load() {
		return false
	}
	if c.resp.CloseConnection() {
		return false
	}
	return true
}

// queueWrite serializes the response into the write buffer and transitions
// to WritingResponse; closeAfter records whether the connection should
// close once the write drains.
func (c *Connection) queueWrite(closeAfter bool) {
	if closeAfter {
		c.resp.Header.Set("Connection", "close")
	}
	if c.writeBuf.Data == nil {
		c.writeBuf = c.bufPool.AcquireBucket(api.Bucket4K)
	}
	out, ok := httpwire.BuildInto(c.writeBuf.Data[:0], &c.resp)
	if !ok {
		// response exceeded the buffer; fall back to a heap-backed copy
		// rather than truncate output (rare: oversized handler body).
		out, _ = httpwire.BuildInto(nil, &c.resp)
	}
	c.pendingWrite = out
	c.state = WritingResponse
	c.armDeadlines()
}

// OnWritable is driven by the worker when the fd is writable. It drains
// pendingWrite and, on completion, either recycles the connection for
// keep-alive or closes it.
func (c *Connection) OnWritable() {
	if c.state != WritingResponse {
		return
	}
	for len(c.pendingWrite) > 0 {
		n, ioState, err := c.raw.Write(c.pendingWrite)
		switch ioState {
		case reactor.IOWouldBlock:
			return
		case reactor.IOError:
			c.closeErr = err
			c.transitionClosed()
			return
		case reactor.IOOk:
			c.pendingWrite = c.pendingWrite[n:]
		}
	}

	closing := c.resp.CloseConnection() || !c.keepAliveAllowedPostWrite()
	if closing {
		c.transitionClosed()
		return
	}
	c.recycleForKeepAlive()
}

func (c *Connection) keepAliveAllowedPostWrite() bool {
	return c.req.KeepAlive &&
		(c.cfg.MaxRequestsPerConnection == 0 || c.requestsServed+1 < c.cfg.MaxRequestsPerConnection) &&
		!(c.shuttingDown != nil && c.shuttingDown.Load())
}

// recycleForKeepAlive implements "WritingResponse → ReadingHeaders
// (keep-alive: reset parser, reset request arena, increment per-connection
// request counter, re-arm idle timer)".
func (c *Connection) recycleForKeepAlive() {
	c.requestsServed++
	c.parser.Reset()
	c.arena.Reset()
	c.queryParsed = false
	c.queryParams = c.queryParams[:0]
	c.readUsed = 0
	c.pendingWrite = nil
	c.armIdleDeadline()
	c.state = ReadingHeaders
}

// Drain reacts to a shutdown signal (§4.6: Draining "entered when the
// server is shutting down and this connection has in-flight work"). A
// connection idly waiting for its next keep-alive request has no in-flight
// work to finish, so it closes immediately; one mid-request is left
// running its normal state transitions untouched — shuttingDown (checked by
// keepAliveAllowedPostWrite) already forces it to close once its current
// response is written, which is equivalent to entering Draining and
// completing, without needing OnReadable/OnWritable to special-case a
// separate state.
func (c *Connection) Drain() {
	if c.state == ReadingHeaders && c.readUsed == 0 {
		c.transitionClosed()
	}
}

// transitionClosed releases every pooled resource exactly once.
func (c *Connection) transitionClosed() {
	if c.state == Closed {
		return
	}
	c.state = Closed
	if c.counters.Errors != nil && c.closeErr != nil {
		c.counters.Errors.Inc()
	}
	if c.readBuf.Data != nil {
		c.bufPool.Release(c.readBuf)
		c.readBuf = api.Buffer{}
	}
	if c.writeBuf.Data != nil {
		c.bufPool.Release(c.writeBuf)
		c.writeBuf = api.Buffer{}
	}
	c.raw.Close()
}

// Close forcibly transitions the connection to Closed, releasing its pooled
// buffers and closing the underlying socket. The state machine itself only
// reaches Closed from within the read/write path; timeout expiry and
// server shutdown have no other trigger, so the worker's timer wheel and
// force-shutdown path call this directly.
func (c *Connection) Close(err error) {
	if err != nil && c.closeErr == nil {
		c.closeErr = err
	}
	c.transitionClosed()
}

// CloseError returns the error that caused the connection to close, if any.
func (c *Connection) CloseError() error { return c.closeErr }

// IdleExpired reports whether the idle timer has fired while waiting for
// the next keep-alive request.
func (c *Connection) IdleExpired(now time.Time) bool {
	return c.state == ReadingHeaders && c.requestsServed > 0 && !c.idleDeadline.IsZero() && now.After(c.idleDeadline)
}

// ReadExpired and WriteExpired let the worker's timer wheel enforce §4.6
// read/write deadlines without the Connection polling a clock itself.
func (c *Connection) ReadExpired(now time.Time) bool {
	return (c.state == ReadingHeaders || c.state == ReadingBody) && now.After(c.readDeadline)
}

func (c *Connection) WriteExpired(now time.Time) bool {
	return c.state == WritingResponse && now.After(c.writeDeadline)
}

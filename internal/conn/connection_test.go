package conn

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/pool"
	"github.com/aurora-http/aurora/internal/testkit"
)

func newTestConnection(t *testing.T, dispatch Dispatcher) (*Connection, *testkit.FakeConn) {
	t.Helper()
	raw := &testkit.FakeConn{}
	bufPool := pool.New(false)
	shuttingDown := &atomic.Bool{}
	c := New(raw, bufPool, DefaultConfig(), Counters{}, testkit.NewFakeClock(time.Unix(0, 0)), shuttingDown, dispatch)
	return c, raw
}

func echoDispatch(ctx api.Context) {
	ctx.Response().WriteHeader(200)
	ctx.Response().Write([]byte("hello"))
}

func TestConnectionAcceptsSimpleRequest(t *testing.T) {
	c, raw := newTestConnection(t, echoDispatch)
	if c.State() != ReadingHeaders {
		t.Fatalf("expected ReadingHeaders immediately after New, got %v", c.State())
	}

	raw.Feed([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	c.OnReadable()

	if c.State() != WritingResponse {
		t.Fatalf("expected WritingResponse after a complete request, got %v", c.State())
	}
	c.OnWritable()

	if !raw.Closed() {
		t.Fatalf("expected connection to close after Connection: close response")
	}
	out := raw.Written.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") || !strings.HasSuffix(out, "hello") {
		t.Fatalf("unexpected response: %q", out)
	}
}

func TestConnectionKeepAliveRecyclesForNextRequest(t *testing.T) {
	c, raw := newTestConnection(t, echoDispatch)

	raw.Feed([]byte("GET /a HTTP/1.1\r\n\r\n"))
	c.OnReadable()
	c.OnWritable()

	if c.State() != ReadingHeaders {
		t.Fatalf("expected ReadingHeaders after a keep-alive response, got %v", c.State())
	}
	if raw.Closed() {
		t.Fatalf("expected connection to remain open for keep-alive")
	}

	raw.Written.Reset()
	raw.Feed([]byte("GET /b HTTP/1.1\r\nConnection: close\r\n\r\n"))
	c.OnReadable()
	c.OnWritable()

	if !raw.Closed() {
		t.Fatalf("expected connection to close on the second request's Connection: close")
	}
}

func TestConnectionHeaderOverflowRejectedWith431(t *testing.T) {
	c, raw := newTestConnection(t, echoDispatch)
	cfg := c.cfg
	cfg.InitialReadBucket = api.Bucket1K
	c.cfg = cfg

	huge := strings.Repeat("x", 300*1024)
	raw.Feed([]byte("GET / HTTP/1.1\r\nX-Big: " + huge + "\r\n\r\n"))
	c.OnReadable()
	c.OnWritable()

	if !strings.Contains(raw.Written.String(), "431") {
		t.Fatalf("expected a 431 response for oversized headers, got %q", raw.Written.String())
	}
}

func TestConnectionAmbiguousFramingClosesWith400(t *testing.T) {
	c, raw := newTestConnection(t, echoDispatch)
	raw.Feed([]byte("POST / HTTP/1.1\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"))
	c.OnReadable()
	c.OnWritable()

	if !strings.Contains(raw.Written.String(), "400") {
		t.Fatalf("expected a 400 response for ambiguous framing, got %q", raw.Written.String())
	}
	if !raw.Closed() {
		t.Fatalf("expected connection to close after a parse error")
	}
}

func TestConnectionEOFMidMessageCloses(t *testing.T) {
	c, raw := newTestConnection(t, echoDispatch)
	raw.Feed([]byte("GET / HTTP/1.1\r\n"))
	raw.FeedEOF()
	c.OnReadable()

	if c.State() != Closed {
		t.Fatalf("expected Closed after EOF mid-message, got %v", c.State())
	}
	if c.CloseError() == nil {
		t.Fatalf("expected a close error to be recorded")
	}
}

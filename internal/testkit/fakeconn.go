// Package testkit provides in-memory fakes used across the module's test
// suites: a fake non-blocking connection and a fake clock. Grounded on the
// teacher's deleted fake/ package (an in-memory transport double used the
// same way to drive protocol tests without real sockets).
package testkit

import (
	"bytes"
	"errors"

	"github.com/aurora-http/aurora/internal/reactor"
)

// FakeConn is an in-memory RawConn: Feed appends bytes as if they had
// arrived from the peer, Read drains them (returning IOWouldBlock once
// exhausted), and Write appends to Written for assertions.
type FakeConn struct {
	inbound  bytes.Buffer
	Written  bytes.Buffer
	closed   bool
	eof      bool
	failNext error
}

// Feed queues bytes for the next Read calls to return.
func (f *FakeConn) Feed(p []byte) { f.inbound.Write(p) }

// FeedEOF marks the connection as having reached EOF once buffered bytes
// are drained.
func (f *FakeConn) FeedEOF() { f.eof = true }

// FailNextWith makes the next Read or Write return IOError with err.
func (f *FakeConn) FailNextWith(err error) { f.failNext = err }

func (f *FakeConn) Read(buf []byte) (int, reactor.IOState, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, reactor.IOError, err
	}
	if f.inbound.Len() == 0 {
		if f.eof {
			return 0, reactor.IOEof, nil
		}
		return 0, reactor.IOWouldBlock, nil
	}
	n, _ := f.inbound.Read(buf)
	return n, reactor.IOOk, nil
}

func (f *FakeConn) Write(buf []byte) (int, reactor.IOState, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return 0, reactor.IOError, err
	}
	n, _ := f.Written.Write(buf)
	return n, reactor.IOOk, nil
}

func (f *FakeConn) Close() error {
	if f.closed {
		return errors.New("testkit: FakeConn already closed")
	}
	f.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (f *FakeConn) Closed() bool { return f.closed }

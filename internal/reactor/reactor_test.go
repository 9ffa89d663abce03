package reactor

import (
	"net"
	"testing"
	"time"
)

func TestListenAndAcceptNonBlocking(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	fd, _, state, err := ln.AcceptNonBlocking()
	if err != nil && state != IOWouldBlock {
		t.Fatalf("unexpected error before any client connects: %v", err)
	}
	if state != IOWouldBlock {
		t.Fatalf("expected IOWouldBlock with no pending connections, got state=%v fd=%d", state, fd)
	}

	addr := ln.Addr().(*net.TCPAddr)
	client, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		fd, _, state, err = ln.AcceptNonBlocking()
		if err != nil {
			t.Fatalf("AcceptNonBlocking: %v", err)
		}
		if state == IOOk {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if state != IOOk {
		t.Fatalf("expected a connection to become acceptable within the deadline")
	}
	if fd < 0 && runtimeSupportsFd() {
		t.Fatalf("expected a valid fd on a platform that supports fd-based accept")
	}
}

func TestNewPollerLifecycle(t *testing.T) {
	p, err := NewPoller(16)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

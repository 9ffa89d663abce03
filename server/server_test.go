package server_test

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/server"
)

// TestServerGracefulShutdownDrainsInFlightConnections drives a real
// listening socket end to end (grounded on the teacher's
// TestHioloadWSFullLifecycle, which exercises Start/Submit/Shutdown against
// the real facade rather than mocks): a slow in-flight handler must finish
// and its response must reach the client before Shutdown returns, and
// Shutdown must return well within its deadline rather than forcing a
// close.
func TestServerGracefulShutdownDrainsInFlightConnections(t *testing.T) {
	const port = 19171
	cfg := server.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.NumWorkers = 1
	cfg.ShutdownTimeout = 2 * time.Second

	s := server.New(cfg)
	s.Router.Handle("GET", "/slow", func(ctx api.Context) {
		time.Sleep(50 * time.Millisecond)
		ctx.Response().WriteHeader(200)
		ctx.Response().Write([]byte("done"))
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.ListenAndServe() }()
	waitForListener(t, port)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /slow HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write request failed: %v", err)
	}

	// Give the worker time to accept the connection and begin the slow
	// handler before Shutdown is asked to drain it.
	time.Sleep(10 * time.Millisecond)

	shutdownDone := make(chan error, 1)
	shutdownStart := time.Now()
	go func() { shutdownDone <- s.Shutdown(cfg.ShutdownTimeout) }()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line failed: %v", err)
	}
	if line != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("unexpected status line: %q", line)
	}

	select {
	case err := <-shutdownDone:
		if err != nil {
			t.Fatalf("Shutdown returned error: %v", err)
		}
	case <-time.After(cfg.ShutdownTimeout + time.Second):
		t.Fatalf("Shutdown did not return")
	}
	if elapsed := time.Since(shutdownStart); elapsed >= cfg.ShutdownTimeout {
		t.Fatalf("Shutdown took the full force-close deadline (%v); expected it to drain before then", elapsed)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ListenAndServe did not return after Shutdown")
	}
}

func waitForListener(t *testing.T, port int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			c.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server never started listening on port %d", port)
}

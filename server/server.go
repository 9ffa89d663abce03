package server

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/internal/conn"
	"github.com/aurora-http/aurora/internal/reactor"
	"github.com/aurora-http/aurora/memory"
	"github.com/aurora-http/aurora/metrics"
	"github.com/aurora-http/aurora/middleware"
	"github.com/aurora-http/aurora/router"
)

// Server is the top-level orchestrator (§4.7): a single acceptor loop, N
// worker event loops, backpressure, hook and exception dispatch, and the
// memory-pressure monitor, all wired around a router.Router. Grounded on the
// teacher's highlevel/server.go top-level struct, generalized from a single
// WebSocket listener to Aurora's worker-pool model.
type Server struct {
	cfg Config
	log zerolog.Logger

	Router     *router.Router
	Hooks      *HookRegistry
	Exceptions *ExceptionRegistry
	Metrics    *metrics.Registry
	Monitor    *memory.Monitor
	Control    api.Control

	backpressure *Backpressure
	clock        api.Clock

	globalMiddleware []api.Middleware

	listener reactor.Listener
	workers  []*worker

	shuttingDown atomic.Bool
	stopOnce     sync.Once
	acceptDone   chan struct{}
}

// New builds a Server from cfg with the §6 ambient stack: a zerolog console
// logger, a fresh metrics registry, and a memory monitor using its own
// defaults.
func New(cfg Config) *Server {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	log := zerolog.New(out).With().Timestamp().Logger()

	registry := metrics.NewRegistry()
	clock := api.SystemClock{}
	monitorCfg := memory.Config{}.WithDefaults()
	monitor := memory.New(monitorCfg, registry, clock, memory.RuntimeHeapReader)

	s := &Server{
		cfg:        cfg,
		log:        log,
		Router:     router.New(),
		Hooks:      NewHookRegistry(log),
		Exceptions: NewExceptionRegistry(),
		Metrics:    registry,
		Monitor:    monitor,
		clock:      clock,
		acceptDone: make(chan struct{}),
	}
	s.backpressure = NewBackpressure(cfg, registry)
	s.Control = newControl(s)
	s.Use(memory.Middleware(monitor))
	return s
}

// Use appends global middleware, run for every route ahead of route-specific
// middleware.
func (s *Server) Use(mw api.Middleware) { s.globalMiddleware = append(s.globalMiddleware, mw) }

// ListenAndServe fires onStart hooks, binds the listener, spawns the worker
// pool, and runs the acceptor loop until Shutdown is called. It blocks until
// the acceptor loop exits.
func (s *Server) ListenAndServe() error {
	s.Hooks.RunStart()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := reactor.Listen(addr)
	if err != nil {
		return fmt.Errorf("aurora: listen %s: %w", addr, err)
	}
	s.listener = listener

	numWorkers := s.cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	s.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		w, err := newWorker(i, s.cfg, s.Metrics, s.clock, &s.shuttingDown, s.backpressure, s.dispatch, s.log)
		if err != nil {
			return fmt.Errorf("aurora: worker %d: %w", i, err)
		}
		s.workers[i] = w
		go func(workerID int) {
			runtime.LockOSThread()
			if err := reactor.SetAffinity(workerID % runtime.NumCPU()); err != nil {
				s.log.Debug().Err(err).Int("worker", workerID).Msg("cpu affinity unavailable")
			}
			w.Run()
		}(i)
	}

	s.log.Info().Str("addr", addr).Int("workers", numWorkers).Msg("aurora listening")
	s.acceptLoop()
	return nil
}

// acceptLoop is the single accept loop described in §4.7: it owns the
// listening socket exclusively and round-robins accepted fds across
// workers, never touching connection state itself.
func (s *Server) acceptLoop() {
	defer close(s.acceptDone)
	next := 0
	for {
		next = s.drainPending(next)

		fd, _, state, err := s.listener.AcceptNonBlocking()
		if err != nil {
			if s.shuttingDown.Load() {
				return
			}
			s.log.Error().Err(err).Msg("accept failed")
			continue
		}
		switch state {
		case reactor.IOWouldBlock:
			if s.shuttingDown.Load() {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		case reactor.IOEof, reactor.IOError:
			return
		}

		if admit, shouldQueue := s.backpressure.Admit(); !admit {
			if shouldQueue {
				s.backpressure.Enqueue(fd)
				continue
			}
			if s.backpressure.Behavior() == Reject503 {
				rejectWithServiceUnavailable(fd, s.backpressure.RetryAfterSeconds())
			} else {
				reactor.Conn{Fd: fd}.Close()
			}
			continue
		}
		s.backpressure.OnAccept()
		s.workers[next].Submit(fd)
		next = (next + 1) % len(s.workers)
	}
}

// drainPending admits connections held by the QueueRequest overload
// behavior once capacity frees up, round-robining from next. It returns the
// updated round-robin cursor.
func (s *Server) drainPending(next int) int {
	for {
		if s.backpressure.Overloaded() || s.backpressure.InFlightAtLimit() {
			return next
		}
		item := s.backpressure.Dequeue()
		if item == nil {
			return next
		}
		fd, ok := item.(int)
		if !ok {
			continue
		}
		s.backpressure.OnAccept()
		s.workers[next].Submit(fd)
		next = (next + 1) % len(s.workers)
	}
}

// dispatch is the conn.Dispatcher every worker's connections share: it
// routes the request, installs the middleware pipeline, runs it, and falls
// back to typed exception dispatch (or a generic 500) on panic.
func (s *Server) dispatch(ctx api.Context) {
	s.backpressure.OnRequestStart()
	defer s.backpressure.OnRequestDone()

	s.Hooks.RunRequest(ctx)

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("aurora: handler panic: %v", r)
			}
			s.handleException(ctx, err)
		}
		s.Hooks.RunResponse(ctx, ctx.Response())
	}()

	req := ctx.Request()
	handler, routeMW, params, _ := s.Router.Match(req.Method, req.Path)
	if ps, ok := ctx.(conn.ParamSetter); ok {
		ps.SetParams(params)
	}

	pipeline := middleware.New(s.globalMiddleware, routeMW, handler)
	middleware.Run(ctx, pipeline)
}

// handleException implements the §4.7 fallback: dispatch to a registered
// typed handler, or else write a generic 500 and fire onError hooks.
func (s *Server) handleException(ctx api.Context, err error) {
	if s.Exceptions.Dispatch(ctx, err) {
		return
	}
	s.Hooks.RunError(ctx, err)
	resp := ctx.Response()
	resp.Reset()
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.WriteHeader(500)
	resp.Write([]byte("500 internal server error"))
	s.log.Error().Err(err).Str("path", ctx.Request().Path).Msg("unhandled request error")
}

// Shutdown runs the §4.7 graceful shutdown sequence: stop accepting new
// connections, reject queued backlog with 503, let in-flight connections
// drain, then force-close after timeout. Safe to call more than once.
func (s *Server) Shutdown(timeout time.Duration) error {
	var err error
	s.stopOnce.Do(func() {
		s.shuttingDown.Store(true)
		if s.listener != nil {
			err = s.listener.Close()
		}
		for {
			item := s.backpressure.Dequeue()
			if item == nil {
				break
			}
			if fd, ok := item.(int); ok {
				s.backpressure.RejectDuringShutdown()
				rejectWithServiceUnavailable(fd, s.backpressure.RetryAfterSeconds())
			}
		}

		<-s.acceptDone

		for _, w := range s.workers {
			w.Stop()
		}

		allDone := make(chan struct{})
		go func() {
			for _, w := range s.workers {
				<-w.Done()
			}
			close(allDone)
		}()

		select {
		case <-allDone:
		case <-time.After(timeout):
			s.log.Warn().Msg("shutdown deadline exceeded; forcing close of remaining connections")
			for _, w := range s.workers {
				w.ForceStop()
			}
			<-allDone
		}

		s.Hooks.RunStop()
	})
	return err
}

// Package aurora is the fluent application-builder API (§1, §3): route
// registration, route groups, and HTTP-method helpers over a router.Router
// and server.Server. Grounded on the teacher's highlevel/server.go Server
// and RouteGroup, generalized from WebSocket upgrade handlers registered by
// path to full HTTP method+path route handlers with middleware chains.
package aurora

import (
	"strings"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/server"
)

// App is the embedding application's entry point: construct one with New,
// register routes with Get/Post/etc. or Group, then call ListenAndServe.
type App struct {
	srv *server.Server
}

// New builds an App from cfg.
func New(cfg server.Config) *App {
	return &App{srv: server.New(cfg)}
}

// Default builds an App with server.DefaultConfig().
func Default() *App {
	return New(server.DefaultConfig())
}

// Use registers global middleware, run ahead of every route's own
// middleware, in registration order.
func (a *App) Use(mw ...api.Middleware) *App {
	for _, m := range mw {
		a.srv.Use(m)
	}
	return a
}

// Handle registers handler for method and path with optional route-specific
// middleware. path segments prefixed with ':' are captured as params.
func (a *App) Handle(method, path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	a.srv.Router.Handle(method, path, handler, mw...)
	return a
}

func (a *App) Get(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("GET", path, handler, mw...)
}
func (a *App) Post(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("POST", path, handler, mw...)
}
func (a *App) Put(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("PUT", path, handler, mw...)
}
func (a *App) Patch(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("PATCH", path, handler, mw...)
}
func (a *App) Delete(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("DELETE", path, handler, mw...)
}
func (a *App) Head(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("HEAD", path, handler, mw...)
}
func (a *App) Options(path string, handler api.HandlerFunc, mw ...api.Middleware) *App {
	return a.Handle("OPTIONS", path, handler, mw...)
}

// Group returns a RouteGroup whose routes are all registered with prefix
// prepended.
func (a *App) Group(prefix string) *RouteGroup {
	return &RouteGroup{app: a, prefix: prefix}
}

// NotFound overrides the default 404 handler.
func (a *App) NotFound(h api.HandlerFunc) *App {
	a.srv.Router.SetNotFound(h)
	return a
}

// MethodNotAllowed overrides the default 405 handler.
func (a *App) MethodNotAllowed(h api.HandlerFunc) *App {
	a.srv.Router.SetMethodNotAllowed(h)
	return a
}

// OnException registers a typed exception handler, matched against an
// error's dynamic type (and its unwrap chain) when a route handler panics
// (§4.7).
func (a *App) OnException(sample error, handler api.ExceptionHandler) error {
	return a.srv.Exceptions.Register(sample, handler)
}

// OnStart/OnStop/OnRequest/OnResponse/OnError register lifecycle hooks (§3).
func (a *App) OnStart(fn api.StartStopHook)    { a.srv.Hooks.OnStart(fn) }
func (a *App) OnStop(fn api.StartStopHook)     { a.srv.Hooks.OnStop(fn) }
func (a *App) OnRequest(fn api.RequestHook)    { a.srv.Hooks.OnRequest(fn) }
func (a *App) OnResponse(fn api.ResponseHook)  { a.srv.Hooks.OnResponse(fn) }
func (a *App) OnError(fn api.ErrorHook)        { a.srv.Hooks.OnError(fn) }

// Metrics returns the underlying server, whose Metrics field holds the
// application's metrics registry for export wiring.
func (a *App) Metrics() *server.Server { return a.srv }

// Control exposes runtime stats and debug-probe registration (§6).
func (a *App) Control() api.Control { return a.srv.Control }

// ListenAndServe binds the listener, spawns the worker pool, and blocks
// serving requests until Shutdown is called from another goroutine.
func (a *App) ListenAndServe() error { return a.srv.ListenAndServe() }

// Shutdown runs the graceful shutdown sequence (§4.7), blocking up to
// timeout for in-flight connections to drain.
func (a *App) Shutdown(timeout time.Duration) error { return a.srv.Shutdown(timeout) }

// RouteGroup groups routes under a common path prefix (§3), mirroring the
// teacher's RouteGroup but over HTTP method+path routes instead of
// WebSocket upgrade paths.
type RouteGroup struct {
	app    *App
	prefix string
}

func (g *RouteGroup) Group(prefix string) *RouteGroup {
	return &RouteGroup{app: g.app, prefix: g.joinPrefix(prefix)}
}

func (g *RouteGroup) Handle(method, path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	g.app.Handle(method, g.joinPrefix(path), handler, mw...)
	return g
}

func (g *RouteGroup) Get(path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	return g.Handle("GET", path, handler, mw...)
}
func (g *RouteGroup) Post(path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	return g.Handle("POST", path, handler, mw...)
}
func (g *RouteGroup) Put(path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	return g.Handle("PUT", path, handler, mw...)
}
func (g *RouteGroup) Patch(path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	return g.Handle("PATCH", path, handler, mw...)
}
func (g *RouteGroup) Delete(path string, handler api.HandlerFunc, mw ...api.Middleware) *RouteGroup {
	return g.Handle("DELETE", path, handler, mw...)
}

func (g *RouteGroup) joinPrefix(path string) string {
	if g.prefix == "" {
		return path
	}
	prefix := strings.TrimSuffix(g.prefix, "/")
	if !strings.HasPrefix(path, "/") {
		return prefix + "/" + path
	}
	return prefix + path
}

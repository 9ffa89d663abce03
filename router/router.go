// Package router implements the path/parameter route adapter consumed by
// the server orchestrator and the fluent application API (§1, as an
// external collaborator to the core). Grounded on the teacher's
// highlevel/server.go path-matching style, generalized from WebSocket
// upgrade paths to full HTTP method + path routing with `:param` segments.
package router

import (
	"strings"

	"github.com/aurora-http/aurora/api"
)

type segment struct {
	literal string
	isParam bool
	param   string
}

type route struct {
	method   string
	segments []segment
	handler  api.HandlerFunc
	mws      []api.Middleware
}

// Router matches an incoming method+path against registered routes,
// extracting `:name` path parameters.
type Router struct {
	routes        []route
	notFound      api.HandlerFunc
	methodNotAllowed api.HandlerFunc
}

// New returns an empty Router with default 404/405 handlers.
func New() *Router {
	return &Router{
		notFound:         defaultNotFound,
		methodNotAllowed: defaultMethodNotAllowed,
	}
}

// Handle registers handler (with optional route-specific middleware) for
// method and path. path segments prefixed with ':' are captured as params,
// e.g. "/users/:id".
func (r *Router) Handle(method, path string, handler api.HandlerFunc, mws ...api.Middleware) {
	r.routes = append(r.routes, route{
		method:   strings.ToUpper(method),
		segments: splitSegments(path),
		handler:  handler,
		mws:      mws,
	})
}

// SetNotFound overrides the default 404 handler.
func (r *Router) SetNotFound(h api.HandlerFunc) { r.notFound = h }

// SetMethodNotAllowed overrides the default 405 handler.
func (r *Router) SetMethodNotAllowed(h api.HandlerFunc) { r.methodNotAllowed = h }

func splitSegments(path string) []segment {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, ":") {
			segs = append(segs, segment{isParam: true, param: p[1:]})
		} else {
			segs = append(segs, segment{literal: p})
		}
	}
	return segs
}

// Match finds a handler for method+path. It returns the handler, its
// route-specific middleware, extracted params, and ok=false if no route
// matched (in which case handler is either the 404 or 405 fallback).
func (r *Router) Match(method, path string) (api.HandlerFunc, []api.Middleware, []api.RouteParam, bool) {
	want := splitSegments(path)
	pathMatched := false

	for _, rt := range r.routes {
		params, ok := matchSegments(rt.segments, want)
		if !ok {
			continue
		}
		pathMatched = true
		if rt.method != strings.ToUpper(method) {
			continue
		}
		return rt.handler, rt.mws, params, true
	}

	if pathMatched {
		return r.methodNotAllowed, nil, nil, false
	}
	return r.notFound, nil, nil, false
}

func matchSegments(pattern, actual []segment) ([]api.RouteParam, bool) {
	if len(pattern) != len(actual) {
		return nil, false
	}
	var params []api.RouteParam
	for i, seg := range pattern {
		if seg.isParam {
			params = append(params, api.RouteParam{Key: seg.param, Value: actual[i].literal})
			continue
		}
		if seg.literal != actual[i].literal {
			return nil, false
		}
	}
	return params, true
}

func defaultNotFound(ctx api.Context) {
	ctx.Response().WriteHeader(404)
	ctx.Response().Write([]byte("404 not found"))
}

func defaultMethodNotAllowed(ctx api.Context) {
	ctx.Response().WriteHeader(405)
	ctx.Response().Write([]byte("405 method not allowed"))
}

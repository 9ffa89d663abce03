package server

import (
	"github.com/rs/zerolog"

	"github.com/aurora-http/aurora/api"
)

// HookRegistry holds the five ordered hook lists (§3, §4.7). Lists are
// append-only before Start and read-only afterward, so the hot path needs
// no lock.
type HookRegistry struct {
	onStart    []api.StartStopHook
	onStop     []api.StartStopHook
	onRequest  []api.RequestHook
	onResponse []api.ResponseHook
	onError    []api.ErrorHook

	log zerolog.Logger
}

// NewHookRegistry returns an empty registry that logs swallowed hook
// panics through log.
func NewHookRegistry(log zerolog.Logger) *HookRegistry {
	return &HookRegistry{log: log}
}

func (h *HookRegistry) OnStart(fn api.StartStopHook)       { h.onStart = append(h.onStart, fn) }
func (h *HookRegistry) OnStop(fn api.StartStopHook)        { h.onStop = append(h.onStop, fn) }
func (h *HookRegistry) OnRequest(fn api.RequestHook)       { h.onRequest = append(h.onRequest, fn) }
func (h *HookRegistry) OnResponse(fn api.ResponseHook)     { h.onResponse = append(h.onResponse, fn) }
func (h *HookRegistry) OnError(fn api.ErrorHook)           { h.onError = append(h.onError, fn) }

// RunStart fires onStart hooks, FIFO, before the listening socket is armed.
func (h *HookRegistry) RunStart() {
	for _, fn := range h.onStart {
		h.guard("onStart", func() { fn() })
	}
}

// RunStop fires onStop hooks, FIFO, after the listener closes.
func (h *HookRegistry) RunStop() {
	for _, fn := range h.onStop {
		h.guard("onStop", func() { fn() })
	}
}

// RunRequest fires onRequest hooks before the middleware pipeline.
func (h *HookRegistry) RunRequest(ctx api.Context) {
	for _, fn := range h.onRequest {
		h.guard("onRequest", func() { fn(ctx) })
	}
}

// RunResponse fires onResponse hooks after the response body is fully
// serialized but before it is written.
func (h *HookRegistry) RunResponse(ctx api.Context, resp *api.ResponseWriter) {
	for _, fn := range h.onResponse {
		h.guard("onResponse", func() { fn(ctx, resp) })
	}
}

// RunError fires onError hooks when the runtime falls back to a generic 500.
func (h *HookRegistry) RunError(ctx api.Context, err error) {
	for _, fn := range h.onError {
		h.guard("onError", func() { fn(ctx, err) })
	}
}

// guard invokes fn, recovering and logging a panic so a misbehaving hook
// cannot take down the request (§4.7: "swallows hook-internal exceptions").
func (h *HookRegistry) guard(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("hook", kind).Interface("panic", r).Msg("hook panicked; continuing")
		}
	}()
	fn()
}

package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aurora-http/aurora/api"
)

type fakeExceptionCtx struct {
	aborted bool
	resp    api.ResponseWriter
}

func (f *fakeExceptionCtx) Request() *api.Request          { return &api.Request{} }
func (f *fakeExceptionCtx) Response() *api.ResponseWriter   { return &f.resp }
func (f *fakeExceptionCtx) Param(string) (string, bool)     { return "", false }
func (f *fakeExceptionCtx) Params() []api.RouteParam        { return nil }
func (f *fakeExceptionCtx) QueryParam(string) (string, bool) { return "", false }
func (f *fakeExceptionCtx) QueryParams() []api.RouteParam   { return nil }
func (f *fakeExceptionCtx) Set(string, any)                 {}
func (f *fakeExceptionCtx) Get(string) (any, bool)          { return nil, false }
func (f *fakeExceptionCtx) Next()                           {}
func (f *fakeExceptionCtx) Abort()                          { f.aborted = true }
func (f *fakeExceptionCtx) Aborted() bool                   { return f.aborted }

type notFoundError struct{ resource string }

func (e *notFoundError) Error() string { return fmt.Sprintf("not found: %s", e.resource) }

type wrappedError struct{ inner error }

func (e *wrappedError) Error() string { return "wrapped: " + e.inner.Error() }
func (e *wrappedError) Unwrap() error { return e.inner }

// TestExceptionRegistryDispatchesExactType checks the §4.7 first lookup
// step: an exact dynamic-type match.
func TestExceptionRegistryDispatchesExactType(t *testing.T) {
	r := NewExceptionRegistry()
	called := false
	if err := r.Register(&notFoundError{}, func(ctx api.Context, err error) {
		called = true
		ctx.Response().WriteHeader(404)
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := &fakeExceptionCtx{}
	if !r.Dispatch(ctx, &notFoundError{resource: "widget"}) {
		t.Fatalf("expected Dispatch to report handled")
	}
	if !called {
		t.Fatalf("expected the registered handler to run")
	}
	if ctx.resp.StatusCode != 404 {
		t.Fatalf("expected handler to set 404, got %d", ctx.resp.StatusCode)
	}
}

// TestExceptionRegistryDispatchesViaUnwrapChain checks the second lookup
// step: no exact match, but a type in the Unwrap chain matches.
func TestExceptionRegistryDispatchesViaUnwrapChain(t *testing.T) {
	r := NewExceptionRegistry()
	var gotErr error
	if err := r.Register(&notFoundError{}, func(ctx api.Context, err error) {
		gotErr = err
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	outer := &wrappedError{inner: &notFoundError{resource: "widget"}}
	ctx := &fakeExceptionCtx{}
	if !r.Dispatch(ctx, outer) {
		t.Fatalf("expected Dispatch to report handled via Unwrap chain")
	}
	// The handler receives the original (outermost) error, not the unwrapped
	// match, so callers can still log/inspect the full chain.
	if gotErr != outer {
		t.Fatalf("expected handler to receive the outermost error, got %v", gotErr)
	}
}

// TestExceptionRegistryUnmatchedReturnsFalse checks the fallback: no exact
// or Unwrap-chain match means the caller must fall back to a generic 500.
func TestExceptionRegistryUnmatchedReturnsFalse(t *testing.T) {
	r := NewExceptionRegistry()
	if err := r.Register(&notFoundError{}, func(api.Context, error) {}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := &fakeExceptionCtx{}
	if r.Dispatch(ctx, errors.New("some unrelated error")) {
		t.Fatalf("expected Dispatch to report unhandled for an unregistered type")
	}
}

// TestExceptionRegistryRejectsNilHandler checks the §4.7 registration-time
// nil-handler rejection.
func TestExceptionRegistryRejectsNilHandler(t *testing.T) {
	r := NewExceptionRegistry()
	if err := r.Register(&notFoundError{}, nil); !errors.Is(err, api.ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
}

// TestExceptionRegistryRejectsDuplicateRegistration checks that a second
// Register for the same dynamic type is rejected rather than silently
// overwriting the first handler.
func TestExceptionRegistryRejectsDuplicateRegistration(t *testing.T) {
	r := NewExceptionRegistry()
	if err := r.Register(&notFoundError{}, func(api.Context, error) {}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(&notFoundError{}, func(api.Context, error) {}); !errors.Is(err, api.ErrHandlerExists) {
		t.Fatalf("expected ErrHandlerExists on duplicate registration, got %v", err)
	}
}

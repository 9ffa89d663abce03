package router

import (
	"testing"

	"github.com/aurora-http/aurora/api"
)

func TestMatchStaticRoute(t *testing.T) {
	r := New()
	r.Handle("GET", "/health", func(api.Context) {})

	_, _, _, ok := r.Match("GET", "/health")
	if !ok {
		t.Fatalf("expected a match for a registered static route")
	}
}

func TestMatchExtractsParams(t *testing.T) {
	r := New()
	r.Handle("GET", "/users/:id/orders/:orderID", func(api.Context) {})

	_, _, params, ok := r.Match("GET", "/users/42/orders/99")
	if !ok {
		t.Fatalf("expected a match")
	}
	want := map[string]string{"id": "42", "orderID": "99"}
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %v", params)
	}
	for _, p := range params {
		if want[p.Key] != p.Value {
			t.Fatalf("unexpected param %s=%s", p.Key, p.Value)
		}
	}
}

func TestMatchReturnsMethodNotAllowedForWrongMethod(t *testing.T) {
	r := New()
	r.Handle("GET", "/widgets", func(api.Context) {})

	_, _, _, ok := r.Match("POST", "/widgets")
	if ok {
		t.Fatalf("expected no match for a path matched by a different method")
	}
}

func TestMatchReturnsNotFoundForUnknownPath(t *testing.T) {
	r := New()
	r.Handle("GET", "/widgets", func(api.Context) {})

	_, _, _, ok := r.Match("GET", "/nope")
	if ok {
		t.Fatalf("expected no match for an unregistered path")
	}
}

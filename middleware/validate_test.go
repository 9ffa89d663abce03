package middleware

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/aurora-http/aurora/api"
)

type createOrder struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func TestValidateAcceptsWellFormedBody(t *testing.T) {
	handlerCalled := false
	mw := Validate[createOrder](validator.New())
	handler := func(ctx api.Context) {
		handlerCalled = true
		body, ok := Body[createOrder](ctx)
		if !ok || body.SKU != "abc" {
			t.Fatalf("expected decoded body to be available to the handler, got %+v ok=%v", body, ok)
		}
	}

	ctx := newFakeCtx()
	ctx.Request().Body = []byte(`{"sku":"abc","quantity":2}`)
	p := New(nil, []api.Middleware{mw}, handler)
	Run(ctx, p)

	if !handlerCalled {
		t.Fatalf("expected handler to run for a valid body")
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	handlerCalled := false
	mw := Validate[createOrder](validator.New())
	handler := func(ctx api.Context) { handlerCalled = true }

	ctx := newFakeCtx()
	ctx.Request().Body = []byte(`{"sku":"abc"}`)
	p := New(nil, []api.Middleware{mw}, handler)
	Run(ctx, p)

	if handlerCalled {
		t.Fatalf("expected handler to be skipped for a missing required field")
	}
	if ctx.Response().StatusCode != 400 {
		t.Fatalf("expected 400, got %d", ctx.Response().StatusCode)
	}
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	mw := Validate[createOrder](validator.New())
	ctx := newFakeCtx()
	ctx.Request().Body = []byte(`{not json`)
	p := New(nil, []api.Middleware{mw}, func(api.Context) {})
	Run(ctx, p)

	if !ctx.Aborted() {
		t.Fatalf("expected pipeline to abort on malformed JSON")
	}
}

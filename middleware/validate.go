package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/aurora-http/aurora/api"
)

// bodyContextKey is the Context.Set key the terminal handler reads the
// decoded, validated body from.
const bodyContextKey = "aurora.validated_body"

// Validate returns a middleware that JSON-decodes the request body into a
// fresh T, runs it through v, and stores the T value under bodyContextKey
// on success. On decode or validation failure it writes a 400 with a JSON
// error body and aborts the pipeline, per §1's description of validation
// middleware as a contract consumer of the core (decoding itself is out of
// the core's scope; only the abort/400 contract is).
func Validate[T any](v *validator.Validate) api.Middleware {
	if v == nil {
		v = validator.New()
	}
	return func(ctx api.Context) {
		var body T
		req := ctx.Request()
		if len(req.Body) > 0 {
			if err := json.Unmarshal(req.Body, &body); err != nil {
				writeValidationError(ctx, fmt.Sprintf("malformed JSON body: %v", err))
				return
			}
		}
		if err := v.Struct(body); err != nil {
			writeValidationError(ctx, err.Error())
			return
		}
		ctx.Set(bodyContextKey, body)
		ctx.Next()
	}
}

// Body retrieves the value stored by Validate[T], for use inside a route
// handler downstream of that middleware.
func Body[T any](ctx api.Context) (T, bool) {
	v, ok := ctx.Get(bodyContextKey)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

func writeValidationError(ctx api.Context, message string) {
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: message})
	resp := ctx.Response()
	resp.Header.Set("Content-Type", "application/json")
	resp.WriteHeader(400)
	resp.Write(body)
	ctx.Abort()
}

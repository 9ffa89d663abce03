// Command aurora-echo is a minimal Aurora application demonstrating the
// plaintext handler, a typed exception handler, and graceful shutdown on
// SIGINT/SIGTERM (§8 scenarios 1 and 5).
package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurora-http/aurora/api"
	"github.com/aurora-http/aurora/aurora"
	"github.com/aurora-http/aurora/server"
)

// ValidationError is a sample typed exception a handler can throw; a
// registered handler reacts to it (and anything wrapping it) with a 400
// instead of the generic 500 fallback.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func main() {
	cfg := server.DefaultConfig()
	app := aurora.New(cfg)

	app.Get("/", func(ctx api.Context) {
		ctx.Response().Header.Set("Content-Type", "text/plain")
		ctx.Response().Write([]byte("Hello, World!"))
	})

	app.Post("/echo", func(ctx api.Context) {
		ctx.Response().Header.Set("Content-Type", "application/octet-stream")
		ctx.Response().Write(ctx.Request().Body)
	})

	app.Get("/boom", func(ctx api.Context) {
		panic(&ValidationError{Reason: "bad"})
	})

	if err := app.OnException(&ValidationError{}, func(ctx api.Context, err error) {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ctx.Response().StatusCode = 400
			ctx.Response().Header.Set("Content-Type", "application/json")
			ctx.Response().Write([]byte(`{"error":"` + ve.Reason + `"}`))
		}
	}); err != nil {
		panic(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		app.Shutdown(30 * time.Second)
	}()

	if err := app.ListenAndServe(); err != nil {
		panic(err)
	}
}

package api

// Context is handed to middleware and route handlers (§3). It holds
// borrowed pointers to the current request/response, router-extracted path
// parameters, and a per-request key/value store consumed by middleware such
// as body validation to hand a decoded object to the handler.
//
// A Context is valid only for the lifetime of the request it was issued
// for; do not retain it past the handler's return.
type Context interface {
	Request() *Request
	Response() *ResponseWriter

	// Param returns a path parameter extracted by the router.
	Param(name string) (string, bool)
	// Params returns all router-extracted path parameters.
	Params() []RouteParam

	// QueryParam returns a percent-decoded query-string value, parsed lazily
	// on first access.
	QueryParam(name string) (string, bool)
	// QueryParams returns every percent-decoded query-string key/value pair.
	QueryParams() []RouteParam

	// Set stores a value under key for the remainder of this request.
	Set(key string, value any)
	// Get retrieves a value previously stored with Set.
	Get(key string) (any, bool)

	// Next invokes the next middleware (or, at the end of the chain, the
	// route handler). Middleware may abstain from calling Next to
	// short-circuit the pipeline.
	Next()

	// Abort marks the pipeline as short-circuited; remaining middleware and
	// the handler are skipped once the current middleware returns.
	Abort()
	Aborted() bool
}

// RouteParam is one named path parameter extracted by a router adapter.
type RouteParam struct {
	Key   string
	Value string
}

// HandlerFunc processes a request through a Context.
type HandlerFunc func(Context)

// Middleware wraps the remainder of the pipeline. It must call ctx.Next()
// to continue the chain, or omit the call to short-circuit.
type Middleware func(Context)

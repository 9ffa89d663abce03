package conn

import "github.com/aurora-http/aurora/api"

// requestContext is the api.Context implementation handed to middleware and
// the route handler for the lifetime of one request (§3 Context). It is
// owned by the Connection and reset between keep-alive requests rather than
// reallocated.
type requestContext struct {
	conn *Connection

	params  []api.RouteParam
	store   map[string]any
	aborted bool

	chain   []api.Middleware
	handler api.HandlerFunc
	index   int
}

var _ api.Context = (*requestContext)(nil)

func (c *requestContext) reset() {
	c.params = c.params[:0]
	for k := range c.store {
		delete(c.store, k)
	}
	c.aborted = false
	c.chain = nil
	c.handler = nil
	c.index = -1
}

func (c *requestContext) Request() *api.Request          { return &c.conn.req }
func (c *requestContext) Response() *api.ResponseWriter   { return &c.conn.resp }

func (c *requestContext) Param(name string) (string, bool) {
	for _, p := range c.params {
		if p.Key == name {
			return p.Value, true
		}
	}
	return "", false
}

func (c *requestContext) Params() []api.RouteParam { return c.params }

func (c *requestContext) QueryParam(name string) (string, bool) {
	c.conn.parseQuery()
	for _, p := range c.conn.queryParams {
		if p.Key == name {
			return p.Value, true
		}
	}
	return "", false
}

func (c *requestContext) QueryParams() []api.RouteParam {
	c.conn.parseQuery()
	return c.conn.queryParams
}

// SetParams installs router-extracted path parameters for this request. The
// server orchestrator calls this (via the ParamSetter interface, since the
// concrete type is unexported) after a successful route match, before
// SetPipeline/Start.
func (c *requestContext) SetParams(params []api.RouteParam) { c.params = params }

// ParamSetter is implemented by this package's Context so the server
// orchestrator can install router-matched path parameters without depending
// on the unexported concrete type.
type ParamSetter interface {
	SetParams([]api.RouteParam)
}

// SetPipeline installs the middleware chain and terminal handler for this
// request. The server orchestrator calls this after routing, before Start.
func (c *requestContext) SetPipeline(chain []api.Middleware, handler api.HandlerFunc) {
	c.chain = chain
	c.handler = handler
}

// Start begins pipeline execution at the first middleware (or the handler,
// if the chain is empty).
func (c *requestContext) Start() { c.Next() }

func (c *requestContext) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

func (c *requestContext) Get(key string) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}

// Next invokes the next middleware in the chain, or the terminal route
// handler once the chain is exhausted. Per §4.8 the chain is a simple
// index-advancing loop rather than recursive closures, avoiding a
// per-request allocation for the call chain itself.
func (c *requestContext) Next() {
	c.index++
	c.run()
}

func (c *requestContext) run() {
	if c.aborted {
		return
	}
	if c.index < len(c.chain) {
		c.chain[c.index](c)
		return
	}
	if c.handler != nil {
		c.handler(c)
	}
}

func (c *requestContext) Abort() { c.aborted = true }

func (c *requestContext) Aborted() bool { return c.aborted }

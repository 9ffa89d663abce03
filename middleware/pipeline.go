// Package middleware implements the zero-allocation pipeline runner
// described in §4.8: an ordered (Context, next) chain terminating in the
// route handler, where each middleware may abstain from calling next to
// short-circuit. It is grounded on the teacher's handler-chaining style in
// highlevel/server.go, generalized from WebSocket frame handlers to the
// HTTP middleware contract.
package middleware

import "github.com/aurora-http/aurora/api"

// Pipeline is an ordered middleware chain plus terminal handler. The server
// builds one per request after route matching and passes it to Run.
type Pipeline struct {
	chain   []api.Middleware
	handler api.HandlerFunc
}

// New builds a Pipeline from global middleware, route-specific middleware,
// and the terminal handler, in execution order.
func New(global, route []api.Middleware, handler api.HandlerFunc) *Pipeline {
	chain := make([]api.Middleware, 0, len(global)+len(route))
	chain = append(chain, global...)
	chain = append(chain, route...)
	return &Pipeline{chain: chain, handler: handler}
}

// Setter is implemented by Context types that own their own chain-position
// state (index into the middleware slice); Run type-asserts to it rather
// than widening api.Context with pipeline-management methods every caller
// would have to implement.
type Setter interface {
	SetPipeline(chain []api.Middleware, handler api.HandlerFunc)
	Start()
}

// Run installs p onto ctx and begins execution. ctx must implement Setter;
// every Context produced by this module's connection layer does.
func Run(ctx api.Context, p *Pipeline) {
	s, ok := ctx.(Setter)
	if !ok {
		// Context implementations outside this module's conn package (e.g.
		// a test double) may run the handler directly with no middleware.
		if p.handler != nil {
			p.handler(ctx)
		}
		return
	}
	s.SetPipeline(p.chain, p.handler)
	s.Start()
}

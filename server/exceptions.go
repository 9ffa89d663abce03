package server

import (
	"errors"
	"reflect"
	"sync"

	"github.com/aurora-http/aurora/api"
)

// ExceptionRegistry maps an error's dynamic type to a registered handler
// (§3 Exception-handler registry, §4.7 dispatch). Register takes the write
// lock; Dispatch on the request hot path takes the read lock.
type ExceptionRegistry struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]api.ExceptionHandler
}

// NewExceptionRegistry returns an empty registry.
func NewExceptionRegistry() *ExceptionRegistry {
	return &ExceptionRegistry{handlers: make(map[reflect.Type]api.ExceptionHandler)}
}

// Register binds handler to the dynamic type of sample. A nil handler is
// rejected at registration time, per §4.7.
func (r *ExceptionRegistry) Register(sample error, handler api.ExceptionHandler) error {
	if handler == nil {
		return api.ErrNilHandler
	}
	t := reflect.TypeOf(sample)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return api.ErrHandlerExists
	}
	r.handlers[t] = handler
	return nil
}

// Dispatch implements the §4.7 three-step lookup: exact type match; else
// walk the error's wrap ancestry (errors.Unwrap, most-derived first, since
// Go has no class hierarchy) looking for a match; else the caller falls
// back to a generic 500.
func (r *ExceptionRegistry) Dispatch(ctx api.Context, err error) (handled bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[reflect.TypeOf(err)]; ok {
		h(ctx, err)
		return true
	}
	for cur := errors.Unwrap(err); cur != nil; cur = errors.Unwrap(cur) {
		if h, ok := r.handlers[reflect.TypeOf(cur)]; ok {
			h(ctx, err)
			return true
		}
	}
	return false
}

package pool

import "github.com/aurora-http/aurora/api"

// ObjectPool is a fixed-capacity, thread-local recycling pool (§4.2). It
// pre-allocates n instances at construction and never grows beyond that;
// Acquire past exhaustion returns ok=false rather than allocating.
type ObjectPool[T any] struct {
	free      []T
	onAcquire func(T)
	onRelease func(T)
	debugMode bool
	cap       int
}

// Option configures an ObjectPool at construction.
type Option[T any] func(*ObjectPool[T])

// WithOnAcquire registers a callback invoked every time Acquire hands out an
// instance (e.g. to reset mutable fields).
func WithOnAcquire[T any](fn func(T)) Option[T] {
	return func(p *ObjectPool[T]) { p.onAcquire = fn }
}

// WithOnRelease registers a callback invoked every time Release accepts an
// instance back.
func WithOnRelease[T any](fn func(T)) Option[T] {
	return func(p *ObjectPool[T]) { p.onRelease = fn }
}

// WithDebugMode enables double-release detection via a linear scan.
func WithDebugMode[T any](enabled bool) Option[T] {
	return func(p *ObjectPool[T]) { p.debugMode = enabled }
}

// NewObjectPool pre-allocates n instances with factory and applies opts.
// n is clamped to 256 per the spec's fixed maximum capacity.
func NewObjectPool[T any](n int, factory func() T, opts ...Option[T]) *ObjectPool[T] {
	if n > 256 {
		n = 256
	}
	p := &ObjectPool[T]{cap: n}
	for _, o := range opts {
		o(p)
	}
	p.free = make([]T, 0, n)
	for i := 0; i < n; i++ {
		p.free = append(p.free, factory())
	}
	return p
}

var _ api.ObjectPool[any] = (*ObjectPool[any])(nil)

// Acquire pops a free instance, or returns the zero value and ok=false when
// the pool is exhausted.
func (p *ObjectPool[T]) Acquire() (T, bool) {
	n := len(p.free)
	if n == 0 {
		var zero T
		return zero, false
	}
	obj := p.free[n-1]
	p.free = p.free[:n-1]
	if p.onAcquire != nil {
		p.onAcquire(obj)
	}
	return obj, true
}

// Release pushes obj back unless the pool is already at capacity, in which
// case the instance is dropped for the garbage collector to reclaim.
func (p *ObjectPool[T]) Release(obj T) {
	if p.debugMode {
		for _, existing := range p.free {
			if any(existing) == any(obj) {
				panic(api.ErrDoubleRelease)
			}
		}
	}
	if p.onRelease != nil {
		p.onRelease(obj)
	}
	if len(p.free) >= p.cap {
		return
	}
	p.free = append(p.free, obj)
}

// Len returns the number of instances currently available.
func (p *ObjectPool[T]) Len() int { return len(p.free) }

// Cap returns the pool's fixed maximum capacity.
func (p *ObjectPool[T]) Cap() int { return p.cap }

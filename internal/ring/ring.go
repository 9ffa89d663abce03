// Package ring implements a bounded MPMC lock-free ring buffer, used by the
// server orchestrator to hand accepted connection descriptors from the
// accept loop to each worker without a mutex on the accept hot path.
//
// Grounded on the teacher's core/concurrency/ring.go and
// core/concurrency/lock_free_queue.go (Vyukov MPMC ring with per-cell
// sequence numbers).
package ring

import "sync/atomic"

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// Ring is a bounded multi-producer multi-consumer queue.
type Ring[T any] struct {
	head uint64
	_    [56]byte
	tail uint64
	_    [56]byte
	mask uint64
	cells []cell[T]
}

// New creates a Ring whose capacity is rounded up to the next power of two.
func New[T any](capacity int) *Ring[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	r := &Ring[T]{mask: uint64(size - 1), cells: make([]cell[T], size)}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// Enqueue adds val; returns false if the ring is full.
func (r *Ring[T]) Enqueue(val T) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		idx := tail & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(tail); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				c.data = val
				c.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false
		}
	}
}

// Dequeue removes and returns the oldest item; ok is false if empty.
func (r *Ring[T]) Dequeue() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		idx := head & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(head+1); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				item = c.data
				var zero T
				c.data = zero
				c.sequence.Store(head + r.mask + 1)
				return item, true
			}
		case diff < 0:
			var zero T
			return zero, false
		}
	}
}

// Len returns an approximate occupancy; exact only absent concurrent writers.
func (r *Ring[T]) Len() int {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int { return int(r.mask + 1) }

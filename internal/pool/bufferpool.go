// Package pool implements the bucketed buffer pool (§4.1) and the
// fixed-capacity object pool (§4.2), both thread-local to a single worker as
// required by §5 (no cross-thread transfer, no locks on the hot path).
//
// Grounded on the teacher's pool/base_bufferpool.go (bucket-indexed free
// lists) and pool/slab_pool.go (size-class allocation with stats), adapted
// from a channel-backed NUMA pool to a plain slice-backed free-list pool
// scoped to one worker goroutine, matching the spec's thread-local model.
package pool

import (
	"sync"

	"github.com/aurora-http/aurora/api"
)

const (
	freeListCap   = 128
	trackedCap    = 256
	defaultAlign  = 64 // cache-line alignment
)

// BufferPool is a thread-local, bucketed buffer pool. It must not be shared
// across goroutines; each worker owns exactly one instance.
type BufferPool struct {
	free       [api.Bucket256K + 1][]api.Buffer
	tracked    map[uintptr]api.Buffer
	debugMode  bool

	allocated int64
	recycled  int64
	freed     int64

	mu sync.Mutex // guards tracked map only; free lists are single-threaded
}

// New constructs a BufferPool. debugMode enables double-release and
// unknown-buffer detection at the cost of a linear scan per release.
func New(debugMode bool) *BufferPool {
	return &BufferPool{
		tracked:   make(map[uintptr]api.Buffer, trackedCap),
		debugMode: debugMode,
	}
}

var _ api.BufferPool = (*BufferPool)(nil)

func bucketFor(n int) (api.BucketClass, bool) {
	for c, size := range api.BucketSizes {
		if n <= size {
			return api.BucketClass(c), true
		}
	}
	return 0, false
}

func newAligned(size int) []byte {
	buf := make([]byte, size+defaultAlign)
	addr := uintptr(0)
	if len(buf) > 0 {
		addr = sliceAddr(buf)
	}
	offset := int((defaultAlign - addr%defaultAlign) % defaultAlign)
	return buf[offset : offset+size : offset+size]
}

// Acquire implements api.BufferPool.
func (p *BufferPool) Acquire(n int) api.Buffer {
	class, ok := bucketFor(n)
	if !ok {
		data := newAligned(n)
		b := api.Buffer{Data: data, Tracked: true}.WithPool(p)
		p.mu.Lock()
		p.tracked[sliceAddr(data)] = b
		p.mu.Unlock()
		p.allocated++
		return b
	}
	return p.AcquireBucket(class)
}

// AcquireBucket implements api.BufferPool.
func (p *BufferPool) AcquireBucket(class api.BucketClass) api.Buffer {
	list := p.free[class]
	if n := len(list); n > 0 {
		b := list[n-1]
		p.free[class] = list[:n-1]
		p.recycled++
		return b
	}
	size := api.BucketSizes[class]
	data := newAligned(size)
	p.allocated++
	return api.Buffer{Data: data, Class: class}.WithPool(p)
}

// Put implements api.Releaser, and is how Buffer.Release() returns memory.
func (p *BufferPool) Put(b api.Buffer) {
	p.Release(b)
}

// Release implements api.BufferPool.
func (p *BufferPool) Release(b api.Buffer) {
	if b.Tracked {
		addr := sliceAddr(b.Data)
		p.mu.Lock()
		_, ok := p.tracked[addr]
		if ok {
			delete(p.tracked, addr)
		}
		p.mu.Unlock()
		if !ok && p.debugMode {
			panic(api.ErrUnknownBuffer)
		}
		p.freed++
		return
	}

	exactLen := len(b.Data)
	if exactLen != api.BucketSizes[b.Class] {
		// Length no longer matches its bucket (e.g. sliced) — free it
		// rather than risk polluting the free list with a short buffer.
		p.freed++
		return
	}

	if p.debugMode {
		for _, existing := range p.free[b.Class] {
			if sliceAddr(existing.Data) == sliceAddr(b.Data) {
				panic(api.ErrDoubleRelease)
			}
		}
	}

	list := p.free[b.Class]
	if len(list) >= freeListCap {
		p.freed++
		return
	}
	p.free[b.Class] = append(list, b)
}

// Cleanup drops every buffer currently on the free lists.
func (p *BufferPool) Cleanup() {
	for i := range p.free {
		p.freed += int64(len(p.free[i]))
		p.free[i] = nil
	}
}

// Stats implements api.BufferPool.
func (p *BufferPool) Stats() api.BufferPoolStats {
	var s api.BufferPoolStats
	s.Allocated = p.allocated
	s.Recycled = p.recycled
	s.Freed = p.freed
	p.mu.Lock()
	s.TrackedLen = len(p.tracked)
	p.mu.Unlock()
	for c := range p.free {
		s.PerBucket[c] = api.BucketStats{FreeListLen: len(p.free[c]), Cap: freeListCap}
	}
	return s
}

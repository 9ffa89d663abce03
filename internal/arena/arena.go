// Package arena implements the per-request bump allocator (§4.3): one
// contiguous region plus an offset, owned by exactly one request, reset in
// O(1) between requests and destroyed with the connection that owns it.
//
// Grounded on the teacher's pool/slab_pool.go fixed-region allocation
// style, simplified to a single-threaded bump allocator since arenas are
// explicitly single-threaded and per-request (spec §4.3).
package arena

import "github.com/aurora-http/aurora/api"

const defaultAlign = 8

// Arena is a bump allocator. Not safe for concurrent use.
type Arena struct {
	region []byte
	offset int
}

var _ api.Arena = (*Arena)(nil)

// New allocates a backing region of the given capacity.
func New(capacity int) *Arena {
	return &Arena{region: make([]byte, capacity)}
}

// Allocate returns a zeroed view of size bytes aligned to align (defaulting
// to 8), or ok=false if the arena lacks sufficient remaining space.
func (a *Arena) Allocate(size, align int) ([]byte, bool) {
	if align <= 0 {
		align = defaultAlign
	}
	aligned := (a.offset + align - 1) &^ (align - 1)
	end := aligned + size
	if end > len(a.region) {
		return nil, false
	}
	a.offset = end
	clear(a.region[aligned:end])
	return a.region[aligned:end:end], true
}

// Reset returns the bump offset to zero in O(1) without freeing the
// backing region, invalidating all previously returned views.
func (a *Arena) Reset() {
	a.offset = 0
}

// Available returns capacity - offset.
func (a *Arena) Available() int { return len(a.region) - a.offset }

// Capacity returns the arena's total capacity.
func (a *Arena) Capacity() int { return len(a.region) }

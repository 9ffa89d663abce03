package api

// BucketClass identifies one of the five pooled buffer size classes (§3).
type BucketClass int

const (
	Bucket1K BucketClass = iota
	Bucket4K
	Bucket16K
	Bucket64K
	Bucket256K
	bucketCount
)

// BucketSizes lists the byte size backing each BucketClass, in ascending order.
var BucketSizes = [bucketCount]int{
	Bucket1K:   1 << 10,
	Bucket4K:   4 << 10,
	Bucket16K:  16 << 10,
	Bucket64K:  64 << 10,
	Bucket256K: 256 << 10,
}

// NumBuckets returns the number of bucket classes.
func NumBuckets() int { return int(bucketCount) }

// Releaser decouples a Buffer from its owning pool implementation.
type Releaser interface {
	Put(Buffer)
}

// Buffer is a zero-copy view over a contiguous, cache-line-aligned byte
// region owned by exactly one holder at a time (§3). It is a value type to
// avoid interface boxing on the hot path; ownership transfers by convention
// on Acquire/Release, not by the Go type system.
type Buffer struct {
	Data  []byte
	Class BucketClass
	// Tracked marks a one-off (non-bucket) allocation that the pool must
	// locate in its tracked-allocation set on Release.
	Tracked bool
	pool    Releaser
}

// Bytes returns the backing slice.
func (b Buffer) Bytes() []byte { return b.Data }

// Len returns len(b.Data).
func (b Buffer) Len() int { return len(b.Data) }

// Cap returns cap(b.Data).
func (b Buffer) Cap() int { return cap(b.Data) }

// Slice returns a new Buffer view sharing the same backing array.
func (b Buffer) Slice(from, to int) Buffer {
	if from < 0 || to > len(b.Data) || from > to {
		return Buffer{Class: b.Class, pool: b.pool}
	}
	return Buffer{Data: b.Data[from:to], Class: b.Class, Tracked: b.Tracked, pool: b.pool}
}

// Release returns the buffer to its owning pool, if any.
func (b Buffer) Release() {
	if b.pool != nil {
		b.pool.Put(b)
	}
}

// WithPool binds the owning pool; used by pool implementations when handing
// out a Buffer.
func (b Buffer) WithPool(p Releaser) Buffer {
	b.pool = p
	return b
}

// BufferPool is the contract for the bucketed buffer pool (§4.1).
type BufferPool interface {
	// Acquire returns a buffer of at least n bytes, rounding up to the
	// smallest bucket class that fits (or a tracked one-off allocation if n
	// exceeds the largest bucket).
	Acquire(n int) Buffer
	// AcquireBucket returns a buffer of exactly the given bucket's size.
	AcquireBucket(class BucketClass) Buffer
	// Release returns a buffer previously obtained from this pool.
	Release(b Buffer)
	// Cleanup frees every buffer currently held on the pool's free lists.
	Cleanup()
	// Stats reports point-in-time pool statistics.
	Stats() BufferPoolStats
}

// BufferPoolStats summarizes pool usage for diagnostics and metrics export.
type BufferPoolStats struct {
	Allocated  int64
	Recycled   int64
	Freed      int64
	PerBucket  [bucketCount]BucketStats
	TrackedLen int
}

// BucketStats captures per-bucket free-list occupancy.
type BucketStats struct {
	FreeListLen int
	Cap         int
}

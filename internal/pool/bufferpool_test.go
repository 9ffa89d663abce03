package pool

import (
	"testing"

	"github.com/aurora-http/aurora/api"
)

func TestBufferPoolRecyclesBucket(t *testing.T) {
	p := New(false)
	b := p.AcquireBucket(api.Bucket4K)
	addr := sliceAddr(b.Data)
	b.Release()

	b2 := p.AcquireBucket(api.Bucket4K)
	if sliceAddr(b2.Data) != addr {
		t.Fatalf("expected reacquire to return the same backing buffer")
	}
}

func TestBufferPoolRoundsUpToSmallestBucket(t *testing.T) {
	p := New(false)
	b := p.Acquire(100)
	if b.Class != api.Bucket1K {
		t.Fatalf("expected Bucket1K, got %v", b.Class)
	}
	if len(b.Data) != 1024 {
		t.Fatalf("expected data length 1024, got %d", len(b.Data))
	}
}

func TestBufferPoolOversizeIsTracked(t *testing.T) {
	p := New(true)
	b := p.Acquire(1 << 20) // larger than the biggest bucket
	if !b.Tracked {
		t.Fatalf("expected tracked one-off allocation")
	}
	b.Release() // must not panic
}

func TestBufferPoolFreeListCap(t *testing.T) {
	p := New(false)
	var bufs []api.Buffer
	for i := 0; i < freeListCap+10; i++ {
		bufs = append(bufs, p.AcquireBucket(api.Bucket1K))
	}
	for _, b := range bufs {
		b.Release()
	}
	stats := p.Stats()
	if stats.PerBucket[api.Bucket1K].FreeListLen > freeListCap {
		t.Fatalf("free list exceeded cap: %d", stats.PerBucket[api.Bucket1K].FreeListLen)
	}
}

func TestBufferPoolDoubleReleasePanicsInDebugMode(t *testing.T) {
	p := New(true)
	b := p.Acquire(1 << 20)
	b.Release()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release of tracked buffer")
		}
	}()
	b.Release()
}

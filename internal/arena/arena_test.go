package arena

import "testing"

func TestArenaResetDeterminism(t *testing.T) {
	a := New(128)
	if _, ok := a.Allocate(64, 0); !ok {
		t.Fatalf("expected allocation to succeed")
	}
	a.Reset()
	if a.Available() != a.Capacity() {
		t.Fatalf("expected available == capacity after reset, got %d != %d", a.Available(), a.Capacity())
	}
	if _, ok := a.Allocate(a.Available(), 0); !ok {
		t.Fatalf("expected allocation of full available size to succeed after reset")
	}
}

func TestArenaExhaustion(t *testing.T) {
	a := New(16)
	if _, ok := a.Allocate(20, 0); ok {
		t.Fatalf("expected allocation larger than capacity to fail")
	}
}

func TestArenaAlignment(t *testing.T) {
	a := New(64)
	if _, ok := a.Allocate(1, 8); !ok {
		t.Fatalf("expected allocation to succeed")
	}
	buf, ok := a.Allocate(8, 8)
	if !ok {
		t.Fatalf("expected aligned allocation to succeed")
	}
	if len(buf) != 8 {
		t.Fatalf("expected 8 byte buffer, got %d", len(buf))
	}
	if a.offset%8 != 0 {
		t.Fatalf("expected offset aligned to 8, got %d", a.offset)
	}
}

package pool

import "testing"

type widget struct{ n int }

func TestObjectPoolExhaustion(t *testing.T) {
	p := NewObjectPool(2, func() *widget { return &widget{} })
	a, ok := p.Acquire()
	if !ok || a == nil {
		t.Fatalf("expected first acquire to succeed")
	}
	b, ok := p.Acquire()
	if !ok || b == nil {
		t.Fatalf("expected second acquire to succeed")
	}
	if _, ok := p.Acquire(); ok {
		t.Fatalf("expected pool exhaustion, got ok=true")
	}
	p.Release(a)
	c, ok := p.Acquire()
	if !ok || c != a {
		t.Fatalf("expected released instance to be reacquired")
	}
}

func TestObjectPoolCapClamp(t *testing.T) {
	p := NewObjectPool(1000, func() *widget { return &widget{} })
	if p.Cap() != 256 {
		t.Fatalf("expected cap clamped to 256, got %d", p.Cap())
	}
}

func TestObjectPoolReleaseBeyondCapIsDropped(t *testing.T) {
	p := NewObjectPool(1, func() *widget { return &widget{} })
	w, _ := p.Acquire()
	p.Release(w)
	p.Release(&widget{}) // pool already full; must not grow
	if p.Len() != 1 {
		t.Fatalf("expected pool length to stay at 1, got %d", p.Len())
	}
}

func TestObjectPoolLifecycleCallbacks(t *testing.T) {
	var acquired, released int
	p := NewObjectPool(1, func() *widget { return &widget{} },
		WithOnAcquire[*widget](func(w *widget) { acquired++ }),
		WithOnRelease[*widget](func(w *widget) { released++ }),
	)
	w, _ := p.Acquire()
	p.Release(w)
	if acquired != 1 || released != 1 {
		t.Fatalf("expected one acquire and one release callback, got %d/%d", acquired, released)
	}
}

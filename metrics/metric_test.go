package metrics

import (
	"strings"
	"sync"
	"testing"
)

func TestCounterAtomicity(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("requests_total")

	const goroutines = 8
	const perGoroutine = 10000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if got, want := c.Value(), uint64(goroutines*perGoroutine); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestRegistryCachesByCompoundKey(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("hits", Label{Key: "route", Value: "/a"})
	b := r.Counter("hits", Label{Key: "route", Value: "/a"})
	c := r.Counter("hits", Label{Key: "route", Value: "/b"})
	if a != b {
		t.Fatalf("expected identical labels to return the same counter")
	}
	if a == c {
		t.Fatalf("expected different labels to return distinct counters")
	}
}

func TestWorkerCacheAvoidsRepeatedRegistryLookup(t *testing.T) {
	r := NewRegistry()
	cache := NewCache(r)
	a := cache.Counter("x")
	b := cache.Counter("x")
	if a != b {
		t.Fatalf("expected worker cache to return the same pointer")
	}
}

func TestPercentileHistogramQuantiles(t *testing.T) {
	r := NewRegistry()
	h := r.PercentileHistogram("latency_seconds")
	for i := 1; i <= 100; i++ {
		h.Observe(float64(i))
	}
	p50, _, _, p99 := h.Percentiles()
	if p50 < 45 || p50 > 55 {
		t.Fatalf("expected p50 near 50, got %v", p50)
	}
	if p99 < 95 {
		t.Fatalf("expected p99 near the top of the range, got %v", p99)
	}
}

func TestExportJSONIncludesAllMetrics(t *testing.T) {
	r := NewRegistry()
	r.Counter("a").Inc()
	r.Gauge("b").Set(2)
	data, err := r.ExportJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"name":"a"`) || !strings.Contains(s, `"name":"b"`) {
		t.Fatalf("expected both metrics present, got %s", s)
	}
}

func TestExportPrometheusFormat(t *testing.T) {
	r := NewRegistry()
	r.Counter("requests_total").Add(5)
	h := r.PercentileHistogram("latency_seconds")
	h.Observe(1)
	h.Observe(2)

	out := string(r.ExportPrometheus())
	if !strings.Contains(out, "# TYPE requests_total counter") {
		t.Fatalf("expected counter TYPE line, got %s", out)
	}
	if !strings.Contains(out, `quantile="0.5"`) {
		t.Fatalf("expected quantile lines, got %s", out)
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.Counter("a").Inc()
	r.Reset()
	if len(r.All()) != 0 {
		t.Fatalf("expected registry to be empty after reset")
	}
}

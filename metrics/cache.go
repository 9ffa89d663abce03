package metrics

// Cache is a worker-local metric pointer cache. Each worker goroutine owns
// exactly one Cache; after the first lookup of a given name+labels, the
// pointer is kept in an unsynchronized map so the hot-path counter.Inc()
// call never touches the registry mutex (§4.4, §5).
type Cache struct {
	registry *Registry

	counters    map[string]*Counter
	gauges      map[string]*Gauge
	histograms  map[string]*Histogram
	percentiles map[string]*PercentileHistogram
	timers      map[string]*Timer
}

// NewCache builds a Cache bound to registry.
func NewCache(registry *Registry) *Cache {
	return &Cache{
		registry:    registry,
		counters:    make(map[string]*Counter),
		gauges:      make(map[string]*Gauge),
		histograms:  make(map[string]*Histogram),
		percentiles: make(map[string]*PercentileHistogram),
		timers:      make(map[string]*Timer),
	}
}

// Counter returns the cached *Counter for name, consulting the registry
// (and its mutex) only on first access from this worker.
func (c *Cache) Counter(name string, labels ...Label) *Counter {
	key := compoundKey(name, sortedLabels(labels))
	if m, ok := c.counters[key]; ok {
		return m
	}
	m := c.registry.Counter(name, labels...)
	c.counters[key] = m
	return m
}

// Gauge returns the cached *Gauge for name.
func (c *Cache) Gauge(name string, labels ...Label) *Gauge {
	key := compoundKey(name, sortedLabels(labels))
	if m, ok := c.gauges[key]; ok {
		return m
	}
	m := c.registry.Gauge(name, labels...)
	c.gauges[key] = m
	return m
}

// Histogram returns the cached *Histogram for name.
func (c *Cache) Histogram(name string, labels ...Label) *Histogram {
	key := compoundKey(name, sortedLabels(labels))
	if m, ok := c.histograms[key]; ok {
		return m
	}
	m := c.registry.Histogram(name, labels...)
	c.histograms[key] = m
	return m
}

// PercentileHistogram returns the cached *PercentileHistogram for name.
func (c *Cache) PercentileHistogram(name string, labels ...Label) *PercentileHistogram {
	key := compoundKey(name, sortedLabels(labels))
	if m, ok := c.percentiles[key]; ok {
		return m
	}
	m := c.registry.PercentileHistogram(name, labels...)
	c.percentiles[key] = m
	return m
}

// Timer returns the cached *Timer for name.
func (c *Cache) Timer(name string, labels ...Label) *Timer {
	key := compoundKey(name, sortedLabels(labels))
	if m, ok := c.timers[key]; ok {
		return m
	}
	m := c.registry.Timer(name, labels...)
	c.timers[key] = m
	return m
}

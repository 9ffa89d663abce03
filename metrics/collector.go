package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector adapts a Registry to prometheus.Collector so an embedding
// application can serve /metrics with promhttp.HandlerFor alongside (or
// instead of) Registry.ExportPrometheus. Percentile reservoirs keep their
// own lazy-sort-on-query semantics (§4.4); this adapter only translates the
// already-computed quantiles into client_golang's wire types, it does not
// replace the reservoir with a prometheus.Summary.
type Collector struct {
	registry *Registry
}

// NewCollector wraps registry for registration with a prometheus.Registerer.
func NewCollector(registry *Registry) *Collector {
	return &Collector{registry: registry}
}

var _ prometheus.Collector = (*Collector)(nil)

// Describe intentionally sends no descriptors, marking this as an unchecked
// collector: metric names are dynamic (registered lazily on first access),
// so they cannot be enumerated ahead of a Collect call.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {}

// Collect translates every registered metric into client_golang metrics.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.registry.All() {
		name := sanitizeName(m.Name())
		labelKeys, labelVals := splitLabels(m.Labels())

		switch v := m.(type) {
		case *Counter:
			desc := prometheus.NewDesc(name, "aurora counter", labelKeys, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v.Value()), labelVals...)
		case *Gauge:
			desc := prometheus.NewDesc(name, "aurora gauge", labelKeys, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v.Value(), labelVals...)
		case *Histogram:
			desc := prometheus.NewDesc(name, "aurora histogram", labelKeys, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.UntypedValue, v.Sum(), labelVals...)
		case *PercentileHistogram:
			collectQuantiles(ch, name, labelKeys, labelVals, v)
		case *Timer:
			collectQuantiles(ch, name, labelKeys, labelVals, &v.PercentileHistogram)
		}
	}
}

func collectQuantiles(ch chan<- prometheus.Metric, name string, labelKeys, labelVals []string, h *PercentileHistogram) {
	p50, p90, p95, p99 := h.Percentiles()
	quantiles := map[float64]float64{0.5: p50, 0.9: p90, 0.95: p95, 0.99: p99}
	desc := prometheus.NewDesc(name, "aurora percentile histogram", labelKeys, nil)
	ch <- prometheus.MustNewConstSummary(desc, h.CountValue(), h.Sum(), quantiles, labelVals...)
}

func splitLabels(l Labels) (keys, values []string) {
	keys = make([]string, len(l))
	values = make([]string, len(l))
	for i, lbl := range l {
		keys[i] = lbl.Key
		values[i] = lbl.Value
	}
	return keys, values
}

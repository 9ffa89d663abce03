package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func promType(k Kind) string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram, KindPercentileHistogram, KindTimer:
		return "summary"
	default:
		return "untyped"
	}
}

func promLabels(l Labels, extra ...Label) string {
	all := make([]Label, 0, len(l)+len(extra))
	all = append(all, l...)
	all = append(all, extra...)
	if len(all) == 0 {
		return ""
	}
	parts := make([]string, len(all))
	for i, lbl := range all {
		parts[i] = fmt.Sprintf("%s=%q", lbl.Key, lbl.Value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ExportPrometheus renders every metric in Prometheus 0.0.4 text format
// (§6): a `# TYPE` line per metric name, then one or more value lines.
// Percentile histograms additionally emit quantile="0.5|0.9|0.95|0.99"
// lines alongside `_count` and `_sum`.
func (r *Registry) ExportPrometheus() []byte {
	all := r.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })

	var b strings.Builder
	for _, m := range all {
		name := sanitizeName(m.Name())
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, promType(m.Kind()))
		switch v := m.(type) {
		case *Counter:
			fmt.Fprintf(&b, "%s%s %s\n", name, promLabels(m.Labels()), fmtFloat(float64(v.Value())))
		case *Gauge:
			fmt.Fprintf(&b, "%s%s %s\n", name, promLabels(m.Labels()), fmtFloat(v.Value()))
		case *Histogram:
			fmt.Fprintf(&b, "%s_count%s %d\n", name, promLabels(m.Labels()), v.CountValue())
			fmt.Fprintf(&b, "%s_sum%s %s\n", name, promLabels(m.Labels()), fmtFloat(v.Sum()))
		case *PercentileHistogram:
			writePercentileLines(&b, name, m.Labels(), v)
		case *Timer:
			writePercentileLines(&b, name, m.Labels(), &v.PercentileHistogram)
		}
	}
	return []byte(b.String())
}

func writePercentileLines(b *strings.Builder, name string, labels Labels, h *PercentileHistogram) {
	p50, p90, p95, p99 := h.Percentiles()
	fmt.Fprintf(b, "%s%s %s\n", name, promLabels(labels, Label{Key: "quantile", Value: "0.5"}), fmtFloat(p50))
	fmt.Fprintf(b, "%s%s %s\n", name, promLabels(labels, Label{Key: "quantile", Value: "0.9"}), fmtFloat(p90))
	fmt.Fprintf(b, "%s%s %s\n", name, promLabels(labels, Label{Key: "quantile", Value: "0.95"}), fmtFloat(p95))
	fmt.Fprintf(b, "%s%s %s\n", name, promLabels(labels, Label{Key: "quantile", Value: "0.99"}), fmtFloat(p99))
	fmt.Fprintf(b, "%s_count%s %d\n", name, promLabels(labels), h.CountValue())
	fmt.Fprintf(b, "%s_sum%s %s\n", name, promLabels(labels), fmtFloat(h.Sum()))
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

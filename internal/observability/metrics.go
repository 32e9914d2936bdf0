package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks pipeline counters and timings on a private Prometheus
// registry. One-shot builds log a summary at the end; long builds can expose
// the registry over HTTP with Handler.
type Metrics struct {
	registry *prometheus.Registry

	PagesParsed      prometheus.Counter
	SymbolsLoaded    prometheus.Counter
	ReferencesTotal  *prometheus.CounterVec // outcome: resolved|broken
	ExamplesRendered *prometheus.CounterVec // outcome: ok|compile_error|render_error|timeout
	CacheEvents      *prometheus.CounterVec // result: hit|miss
	Diagnostics      *prometheus.CounterVec // kind
	PhaseDuration    *prometheus.HistogramVec
}

// NewMetrics creates a metrics set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "quilldocs_pages_parsed_total",
			Help: "Number of content source files parsed.",
		}),
		SymbolsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "quilldocs_symbols_loaded_total",
			Help: "Number of symbols loaded into the registry.",
		}),
		ReferencesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quilldocs_references_total",
			Help: "Cross-reference resolutions by outcome.",
		}, []string{"outcome"}),
		ExamplesRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quilldocs_examples_rendered_total",
			Help: "Example renders by outcome.",
		}, []string{"outcome"}),
		CacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quilldocs_render_cache_events_total",
			Help: "Render cache lookups by result.",
		}, []string{"result"}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "quilldocs_diagnostics_total",
			Help: "Diagnostics recorded by kind.",
		}, []string{"kind"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quilldocs_phase_duration_seconds",
			Help:    "Wall-clock duration of each pipeline phase.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"phase"}),
	}
}

// ObservePhase records the duration of a completed phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families, primarily for tests and the
// end-of-run summary.
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
		out[mf.GetName()] = total
	}
	return out, nil
}

// Package metrics holds the prometheus counters of an ingestion run.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ricettario"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	pages         *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	merge         *prometheus.CounterVec
	resolver      *prometheus.CounterVec
	corpusSize    prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,

		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed by outcome and extraction strategy",
		}, []string{"outcome", "strategy"}),

		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch latency, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),

		merge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_candidates_total",
			Help:      "Merge decisions by result",
		}, []string{"result"}),

		resolver: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_lookups_total",
			Help:      "Video lookups by result",
		}, []string{"result"}),

		corpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_recipes",
			Help:      "Recipes in the corpus after the last write",
		}),
	}

	reg.MustRegister(m.pages, m.fetchDuration, m.merge, m.resolver, m.corpusSize)
	return m
}

func (m *Metrics) ObservePage(outcome, strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.pages.WithLabelValues(outcome, strategy).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveMerge(accepted, invalid, duplicate int) {
	if m == nil {
		return
	}
	m.merge.WithLabelValues("accepted").Add(float64(accepted))
	m.merge.WithLabelValues("invalid").Add(float64(invalid))
	m.merge.WithLabelValues("duplicate").Add(float64(duplicate))
}

func (m *Metrics) ObserveResolver(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.resolver.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusSize.Set(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

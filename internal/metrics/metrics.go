package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by watchqueue
type Metrics struct {
	registry *prometheus.Registry

	EventsAppended  *prometheus.CounterVec
	Operations      *prometheus.CounterVec
	ReorderDuration prometheus.Histogram
	StatsCache      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchqueue",
			Name:      "events_appended_total",
			Help:      "Events appended to the event log, by type.",
		}, []string{"type"}),
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchqueue",
			Name:      "operations_total",
			Help:      "Item operations, by operation and result.",
		}, []string{"operation", "result"}),
		ReorderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watchqueue",
			Name:      "reorder_duration_seconds",
			Help:      "Time spent writing a full reorder of an ordering domain.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		StatsCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchqueue",
			Name:      "stats_cache_total",
			Help:      "Dashboard stats cache lookups, by result.",
		}, []string{"result"}),
	}
}

// ObserveOperation counts an operation outcome
func (m *Metrics) ObserveOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors the service records into. All
// collectors live on a private registry so repeated construction, as happens
// across tests, never collides.
type Registry struct {
	registry *prometheus.Registry

	RowsIngested     prometheus.Counter
	AnalysesComputed *prometheus.CounterVec
	ProductsSkipped  prometheus.Counter
	AnalysisDuration prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// NewRegistry creates and registers every collector the application records.
func NewRegistry() *Registry {
	reg := &Registry{
		registry: prometheus.NewRegistry(),

		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "priceadvisor_sales_rows_ingested_total",
			Help: "Total sales rows accepted across uploads and imports",
		}),

		AnalysesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "priceadvisor_analyses_computed_total",
			Help: "Total per-product analyses stored, by optimization target",
		}, []string{"target"}),

		ProductsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "priceadvisor_products_skipped_total",
			Help: "Products skipped because no elasticity estimate was possible",
		}),

		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "priceadvisor_analysis_duration_seconds",
			Help:    "Duration of full analysis runs in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "priceadvisor_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "priceadvisor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "priceadvisor_cache_hits_total",
			Help: "Analysis cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "priceadvisor_cache_misses_total",
			Help: "Analysis cache misses",
		}),
	}

	reg.registry.MustRegister(
		reg.RowsIngested,
		reg.AnalysesComputed,
		reg.ProductsSkipped,
		reg.AnalysisDuration,
		reg.HTTPRequests,
		reg.HTTPDuration,
		reg.CacheHits,
		reg.CacheMisses,
	)

	return reg
}

// ObserveAnalysis records the outcome of one analysis run.
func (r *Registry) ObserveAnalysis(target string, analyzed, skipped int, elapsed time.Duration) {
	r.AnalysesComputed.WithLabelValues(target).Add(float64(analyzed))
	r.ProductsSkipped.Add(float64(skipped))
	r.AnalysisDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(method, route, status string, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, status).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

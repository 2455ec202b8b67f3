// Package metrics provides the Prometheus request instrumentation shared
// by every ragsuite HTTP service, mirroring the counter/histogram shape
// the teacher's metrics-server and gpu-cluster-executor binaries register.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the per-service request metrics registered against a
// dedicated prometheus.Registry so services can run side by side in tests
// without colliding on the global default registerer.
type Registry struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	reg      *prometheus.Registry
}

// New registers the standard request counter/histogram pair for service
// under a fresh registry.
func New(service string) *Registry {
	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "ragsuite_http_requests_total",
			Help:        "Total HTTP requests handled, labeled by route and status.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"route", "method", "status"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "ragsuite_http_request_duration_seconds",
			Help:        "HTTP request latency in seconds, labeled by route.",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	reg.MustRegister(requests, latency, prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return &Registry{requests: requests, latency: latency, reg: reg}
}

// Middleware returns a gin handler that records request count and latency
// for every route it sees.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.latency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Registerer exposes the underlying prometheus.Registerer so a binary can
// register additional domain-specific collectors (gauges, counters) onto
// the same registry the standard HTTP metrics live on.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Handler exposes the registry's metrics in the Prometheus exposition format.
func (r *Registry) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return func(c *gin.Context) { h.ServeHTTP(c.Writer, c.Request) }
}

// Package observability holds the Prometheus collector, the CloudWatch
// publisher and the OpenTelemetry setup of the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// View metrics
	Mutations    *prometheus.CounterVec
	Renders      *prometheus.CounterVec
	RenderNodes  *prometheus.HistogramVec
	RenderTiming *prometheus.HistogramVec
}

// NewCollector creates a metrics collector with its own registry, so
// several collectors can coexist in tests.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_mutations_total",
				Help:      "Node mutations by view, operation and outcome",
			},
			[]string{"view", "operation", "outcome"},
		),
		Renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of mind map builds",
			},
			[]string{"view"},
		),
		RenderNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_nodes",
				Help:      "Nodes per built mind map",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"view"},
		),
		RenderTiming: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Mind map build duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"view"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.Renders,
		c.RenderNodes,
		c.RenderTiming,
	)
	return c
}

// RecordMutation counts one node mutation.
func (c *Collector) RecordMutation(view, operation, outcome string) {
	c.Mutations.WithLabelValues(view, operation, outcome).Inc()
}

// RecordRender observes one mind map build.
func (c *Collector) RecordRender(view string, nodes int, duration time.Duration) {
	c.Renders.WithLabelValues(view).Inc()
	c.RenderNodes.WithLabelValues(view).Observe(float64(nodes))
	c.RenderTiming.WithLabelValues(view).Observe(duration.Seconds())
}

// RecordHTTP observes one served request.
func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Package metrics exposes the management API's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the management API reports.
type Collector struct {
	ManagementRequests *prometheus.CounterVec
	ProxyRequests      *prometheus.CounterVec
	ProxyInstances     prometheus.Gauge
}

// Config selects the namespace/subsystem the metrics are registered under.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig matches the teacher's own metrics defaults, renamed to
// this project's namespace.
func DefaultConfig() Config {
	return Config{Namespace: "relayd", Subsystem: "api"}
}

// New builds and registers a Collector against registry.
func New(cfg Config, registry *prometheus.Registry) *Collector {
	c := &Collector{
		ManagementRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "management_requests_total",
			Help:      "Total management API requests, by method and path.",
		}, []string{"method", "path"}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total forwarded requests, by service and endpoint.",
		}, []string{"service", "endpoint"}),
		ProxyInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "proxy",
			Name:      "instances",
			Help:      "Number of currently running proxy instances.",
		}),
	}
	registry.MustRegister(c.ManagementRequests, c.ProxyRequests, c.ProxyInstances)
	return c
}

// IncProxyRequest records one forwarded request against a service/endpoint
// pair, satisfying pkg/forwarding.MetricsSink.
func (c *Collector) IncProxyRequest(service, endpoint string) {
	c.ProxyRequests.WithLabelValues(service, endpoint).Inc()
}

// Handler returns the /metrics HTTP handler for registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

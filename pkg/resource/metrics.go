package resource

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for action calls. A nil
// collector records nothing.
type MetricsCollector struct {
	callsTotal      *prometheus.CounterVec
	callsInFlight   *prometheus.GaugeVec
	requestDuration *prometheus.HistogramVec
	responsesTotal  *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		callsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rest_resource_calls_total",
				Help: "Total number of settled action calls",
			},
			[]string{"resource", "action", "status"},
		),
		callsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rest_resource_calls_in_flight",
				Help: "Number of action calls waiting for their response",
			},
			[]string{"resource", "action"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rest_resource_request_duration_seconds",
				Help:    "Duration of HTTP exchanges in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "action"},
		),
		responsesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rest_resource_responses_total",
				Help: "Total number of HTTP responses by status code",
			},
			[]string{"resource", "action", "code"},
		),
	}
}

func (m *MetricsCollector) recordStarted(resource, action string) {
	if m == nil {
		return
	}
	m.callsInFlight.WithLabelValues(resource, action).Inc()
}

func (m *MetricsCollector) recordFinished(resource, action string, status Status) {
	if m == nil {
		return
	}
	m.callsInFlight.WithLabelValues(resource, action).Dec()
	m.callsTotal.WithLabelValues(resource, action, string(status)).Inc()
}

func (m *MetricsCollector) observeResponse(resource, action string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(resource, action).Observe(d.Seconds())
	m.responsesTotal.WithLabelValues(resource, action, strconv.Itoa(code)).Inc()
}

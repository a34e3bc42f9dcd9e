package vault

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeTransport   = "transport_error"
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
)

var (
	// requestsTotal counts calls by method and outcome.
	requestsTotal *prometheus.CounterVec

	// requestDuration tracks call latency by method.
	requestDuration *prometheus.HistogramVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the transport metrics with the default Prometheus
// registry. Calling it more than once is harmless.
func InitMetrics() {
	metricsOnce.Do(func() {
		requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_lifecycle_requests_total",
			Help: "Total number of Vault API calls by method and outcome",
		}, []string{"method", "outcome"})

		requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_lifecycle_request_duration_seconds",
			Help:    "Latency of Vault API calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"})

		metricsRegistered = true
	})
}

// observeRequest is a no-op until InitMetrics has been called.
func observeRequest(method, outcome string, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	requestsTotal.WithLabelValues(method, outcome).Inc()
	requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

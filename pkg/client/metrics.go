package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for WSAPI connection operations.
var (
	wsapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsapi_requests_total",
		Help: "Total WSAPI requests by method and status",
	}, []string{"method", "status"})

	wsapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wsapi_request_duration_seconds",
		Help:    "WSAPI request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})

	wsapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsapi_errors_total",
		Help: "Total WSAPI errors by class",
	}, []string{"class"})

	wsapiSecurityTokenRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsapi_security_token_requests_total",
		Help: "Security token acquisitions by result (acquired, unsupported, failed)",
	}, []string{"result"})
)

func recordError(err error) {
	if class := ClassOf(err); class != "" {
		wsapiErrorsTotal.WithLabelValues(string(class)).Inc()
	}
}

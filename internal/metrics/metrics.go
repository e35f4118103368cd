package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyflow_http_requests_total",
			Help: "Total HTTP requests by method, path and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OpenCheckouts tracks currently-open checkout sessions per dealership.
	// Updated by the background collector, not by the request path.
	OpenCheckouts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyflow_open_checkouts",
			Help: "Open checkout sessions per dealership",
		},
		[]string{"dealership"},
	)

	// KeysByAlertState tracks open sessions bucketed by derived alert state.
	KeysByAlertState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyflow_keys_by_alert_state",
			Help: "Open checkout sessions per dealership and alert state",
		},
		[]string{"dealership", "state"},
	)

	// PendingRepairs tracks unresolved repair requests per dealership.
	PendingRepairs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyflow_pending_repairs",
			Help: "Pending repair requests per dealership",
		},
		[]string{"dealership"},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyflow_checkouts_total",
			Help: "Completed checkout operations by reason",
		},
		[]string{"reason"},
	)

	ReturnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyflow_returns_total",
			Help: "Completed return operations",
		},
	)
)

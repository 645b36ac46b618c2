package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshTotal counts refresh endpoint outcomes by reason.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docregistry",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Refresh token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	// LoginTotal counts login attempts by outcome.
	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docregistry",
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// GuardRejections counts operations stopped by the auth guards.
	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docregistry",
			Subsystem: "auth",
			Name:      "guard_rejections_total",
			Help:      "Requests rejected by authentication or authorization guards",
		},
		[]string{"reason"},
	)

	// HTTPRequests counts served HTTP requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docregistry",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	// HTTPDuration observes HTTP request latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docregistry",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// EventsPublished counts audit events by type and result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docregistry",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Audit events handed to the message queue",
		},
		[]string{"type", "result"},
	)
)

// Handler serves the default registry for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

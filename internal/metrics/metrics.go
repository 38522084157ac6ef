// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated registry served by Handler.
	Registry = prometheus.NewRegistry()

	// WebhookRequests counts webhook deliveries by topic and result
	// (ok, partial_failure, unauthorized, malformed, unsupported).
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdelta",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Webhook deliveries by topic and result.",
		},
		[]string{"topic", "result"},
	)

	// CleanupSteps counts dispatcher steps by topic, step and result.
	CleanupSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdelta",
			Subsystem: "webhook",
			Name:      "cleanup_steps_total",
			Help:      "Cleanup steps run by the webhook dispatcher.",
		},
		[]string{"topic", "step", "result"},
	)

	// ShareTokens counts share link lifecycle events (issued, revoked, deleted, unlocked, unlock_failed).
	ShareTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdelta",
			Subsystem: "share",
			Name:      "tokens_total",
			Help:      "Share link lifecycle events.",
		},
		[]string{"event"},
	)

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopdelta",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration records API request durations.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopdelta",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors (plus Go and process collectors)
// on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(WebhookRequests)
		Registry.MustRegister(CleanupSteps)
		Registry.MustRegister(ShareTokens)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

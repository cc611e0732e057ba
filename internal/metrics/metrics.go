// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	OTPChallenges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_challenges_total",
			Help: "OTP requests and verification outcomes.",
		},
		[]string{"result"},
	)

	ComplaintsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_created_total",
			Help: "Complaints created, by intake channel.",
		},
		[]string{"channel"},
	)

	ComplaintTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_transitions_total",
			Help: "Applied complaint status transitions.",
		},
		[]string{"from", "to"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_published_total",
			Help: "Events published on the in-process bus.",
		},
		[]string{"type"},
	)

	RealtimeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Open websocket connections.",
		},
		[]string{"hub"},
	)

	RealtimeDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dropped_total",
			Help: "Realtime messages dropped because a client queue was full.",
		},
		[]string{"hub"},
	)
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequests,
			HTTPDuration,
			OTPChallenges,
			ComplaintsCreated,
			ComplaintTransitions,
			EventsPublished,
			RealtimeConnections,
			RealtimeDropped,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

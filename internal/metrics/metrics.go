// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convoy_rooms_active",
			Help: "Rooms currently held in memory",
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convoy_ws_connections_active",
			Help: "Open real-time connections",
		},
	)

	// RealtimeEvents counts inbound channel events by name and outcome.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convoy_realtime_events_total",
			Help: "Inbound real-time events by name and result",
		},
		[]string{"event", "result"},
	)

	DroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convoy_ws_dropped_messages_total",
			Help: "Outbound messages dropped because a client's buffer was full",
		},
	)

	RoomsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convoy_rooms_reaped_total",
			Help: "Rooms deleted by the inactivity reaper",
		},
	)
)

// TrackEvent records the outcome of one inbound event.
func TrackEvent(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RealtimeEvents.WithLabelValues(event, result).Inc()
}

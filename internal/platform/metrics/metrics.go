package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TicketsCreated       prometheus.Counter
	StatusTransitions    prometheus.Counter
	DegradedAllocations  prometheus.Counter
	NotificationsPersist prometheus.Counter
	Deliveries           *prometheus.CounterVec
	WebsocketConnections prometheus.Gauge
	RequestLatency       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TicketsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_tickets_created_total",
			Help: "Total number of tickets created",
		}),
		StatusTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_status_transitions_total",
			Help: "Total number of committed ticket status transitions",
		}),
		DegradedAllocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_degraded_allocations_total",
			Help: "Ticket numbers allocated through the timestamp fallback path",
		}),
		NotificationsPersist: promauto.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_notifications_persisted_total",
			Help: "Total number of notification rows persisted",
		}),
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		WebsocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_websocket_connections",
			Help: "Currently registered websocket sessions",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveDelivery records one delivery attempt outcome.
func (m *Metrics) ObserveDelivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(channel, outcome).Inc()
}

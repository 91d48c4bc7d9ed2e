package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SlotsGeneratedTotal prometheus.Counter
	BookingsTotal       *prometheus.CounterVec

	MessagesRelayedTotal prometheus.Counter
	OpenChannels         prometheus.Gauge

	RemindersSentTotal prometheus.Counter
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SlotsGeneratedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "slots_generated_total",
			Help:      "Total consultation slots carved from availability windows.",
		}),

		BookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking attempts by outcome (booked, conflict, contended, error).",
		}, []string{"outcome"}),

		MessagesRelayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "consult",
			Name:      "messages_relayed_total",
			Help:      "Total consultation messages persisted and broadcast.",
		}),

		OpenChannels: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "consult",
			Name:      "open_connections",
			Help:      "Current number of attached consultation websocket clients.",
		}),

		RemindersSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "reminders_sent_total",
			Help:      "Total appointment reminders dispatched.",
		}),
	}
}

// Booking outcomes recorded in BookingsTotal.
const (
	OutcomeBooked    = "booked"
	OutcomeConflict  = "conflict"
	OutcomeContended = "contended"
	OutcomeError     = "error"
)

// ChannelOpened, ChannelClosed and MessageRelayed satisfy the consult
// package's metrics hook.
func (c *Collector) ChannelOpened()  { c.OpenChannels.Inc() }
func (c *Collector) ChannelClosed()  { c.OpenChannels.Dec() }
func (c *Collector) MessageRelayed() { c.MessagesRelayedTotal.Inc() }

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

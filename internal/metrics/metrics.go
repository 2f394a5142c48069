// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_reservations_total",
			Help: "Reservation attempts by outcome (created or the policy code that rejected it)",
		},
		[]string{"outcome"},
	)

	Cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_cancellations_total",
			Help: "Booking cancellations by mode (self, forced, schedule) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	Attendance = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_attendance_marked_total",
			Help: "Attendance marks by value and whether a no-show penalty was charged",
		},
		[]string{"attended", "penalty"},
	)

	QuotaMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_quota_mutations_total",
			Help: "Quota ledger entries written by kind",
		},
		[]string{"kind"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_notifications_total",
			Help: "Notification dispatch results",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "club_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ChangeFeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "club_change_feed_clients",
			Help: "Connected websocket change feed clients",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "club_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordReservation(outcome string) {
	Reservations.WithLabelValues(outcome).Inc()
}

func RecordCancellation(mode, outcome string) {
	Cancellations.WithLabelValues(mode, outcome).Inc()
}

func RecordAttendance(attended, penalty bool) {
	Attendance.WithLabelValues(strconv.FormatBool(attended), strconv.FormatBool(penalty)).Inc()
}

func RecordQuotaMutation(kind string) {
	QuotaMutations.WithLabelValues(kind).Inc()
}

func RecordNotification(result string) {
	Notifications.WithLabelValues(result).Inc()
}

func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

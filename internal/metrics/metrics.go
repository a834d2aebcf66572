package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcome labels.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeLockConflict    = "lock_conflict"
	OutcomeFullyBooked     = "fully_booked"
	OutcomeSlotUnavailable = "slot_unavailable"
	OutcomeNoAvailability  = "no_availability"
	OutcomeNotFound        = "not_found"
	OutcomeAlreadyCanceled = "already_cancelled"
	OutcomeCancelled       = "cancelled"
	OutcomeAbandoned       = "abandoned"
	OutcomeError           = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotbooking_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_booking_attempts_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome", "assigned"},
	)

	BookingCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_booking_cancellations_total",
			Help: "Booking cancellations by outcome",
		},
		[]string{"outcome"},
	)

	LockOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_lock_operations_total",
			Help: "Slot lock operations by operation, backend and result",
		},
		[]string{"op", "backend", "result"},
	)

	LockFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotbooking_lock_fallback_total",
			Help: "Lock operations served by the in-process fallback because the lock store was unreachable",
		},
	)

	LockDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotbooking_lock_degraded",
			Help: "1 while the distributed lock store is unreachable",
		},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotbooking_realtime_connections",
			Help: "Open realtime connections",
		},
	)

	RealtimeMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_realtime_messages_total",
			Help: "Realtime messages by event and result (delivered or dropped)",
		},
		[]string{"event", "result"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotbooking_notifications_total",
			Help: "Downstream booking events by broker, type and status",
		},
		[]string{"broker", "type", "status"},
	)

	SlotsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotbooking_slots_generated_total",
			Help: "Slots inserted by template materialization",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(outcome string, assigned bool) {
	a := "false"
	if assigned {
		a = "true"
	}
	BookingAttemptsTotal.WithLabelValues(outcome, a).Inc()
}

func RecordCancellation(outcome string) {
	BookingCancellationsTotal.WithLabelValues(outcome).Inc()
}

func RecordLock(op, backend string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	LockOperationsTotal.WithLabelValues(op, backend, result).Inc()
}

func RecordRealtime(event string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	RealtimeMessagesTotal.WithLabelValues(event, result).Inc()
}

func RecordNotification(broker, eventType string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(broker, eventType, status).Inc()
}

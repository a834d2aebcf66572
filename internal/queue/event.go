// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Event types double as queue names on RabbitMQ and as the message key
// prefix on Kafka.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// Queues lists every queue the publisher declares and the consumer reads.
var Queues = []string{TypeBookingConfirmed, TypeBookingCancelled}

// BookingEvent is published after a booking commits or is cancelled.  It
// carries enough for downstream consumers (email, analytics) to act
// without querying the primary database.
type BookingEvent struct {
	Type       string `json:"type"`
	BookingID  uint64 `json:"booking_id"`
	UserID     uint64 `json:"user_id"`
	SlotID     uint64 `json:"slot_id"`
	ServiceID  uint64 `json:"service_id"`
	OwnerType  string `json:"owner_type"`
	OwnerID    uint64 `json:"owner_id"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

// NewBookingEvent builds the event for a booking and its slot.
func NewBookingEvent(eventType string, b model.Booking, s model.Slot, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		UserID:     b.UserID,
		SlotID:     s.ID,
		ServiceID:  s.ServiceID,
		OwnerType:  string(s.OwnerType),
		OwnerID:    s.OwnerID,
		StartsAt:   s.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:     s.EndsAt.UTC().Format(time.RFC3339),
		Status:     string(b.Status),
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

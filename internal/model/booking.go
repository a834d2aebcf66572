package model

import "time"

type BookingStatus string

const (
	BookingPending       BookingStatus = "PENDING"
	BookingConfirmed     BookingStatus = "CONFIRMED"
	BookingPaymentFailed BookingStatus = "PAYMENT_FAILED"
	BookingCancelled     BookingStatus = "CANCELLED"
)

// Booking is one user's claim on one unit of a slot's capacity.  A
// CONFIRMED booking is created in the same transaction that incremented the
// slot's booked count; moving it to CANCELLED decrements the count in the
// same transaction as the status change.
type Booking struct {
	ID        uint64        `db:"id" json:"id"`
	UserID    uint64        `db:"user_id" json:"userId"`
	SlotID    uint64        `db:"slot_id" json:"slotId"`
	Status    BookingStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// HoldsCapacity reports whether the booking counts against the slot.
func (b Booking) HoldsCapacity() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

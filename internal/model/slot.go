package model

import "time"

// DateLayout is the calendar date format used in requests and topic keys.
const DateLayout = "2006-01-02"

// Slot is a fixed-duration, fixed-capacity bookable window.  Everything
// except BookedCount is immutable after creation, and BookedCount only moves
// through the conditional increment/decrement in the slot repository.
//
// Invariant: 0 <= BookedCount <= Capacity.
type Slot struct {
	ID          uint64    `db:"id" json:"id"`
	OwnerType   OwnerType `db:"owner_type" json:"ownerType"`
	OwnerID     uint64    `db:"owner_id" json:"ownerId"`
	ServiceID   uint64    `db:"service_id" json:"serviceId"`
	StartsAt    time.Time `db:"starts_at" json:"startsAt"`
	EndsAt      time.Time `db:"ends_at" json:"endsAt"`
	Capacity    int       `db:"capacity" json:"capacity"`
	BookedCount int       `db:"booked_count" json:"bookedCount"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// Available reports whether the slot still accepts a booking.
func (s Slot) Available() bool { return s.BookedCount < s.Capacity }

func (s Slot) Owner() Owner { return Owner{Type: s.OwnerType, ID: s.OwnerID} }

// Date is the UTC calendar day the slot starts on.
func (s Slot) Date() string { return s.StartsAt.UTC().Format(DateLayout) }

// DayBounds returns [start, end) of the UTC calendar day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

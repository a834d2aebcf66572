// Package apperrors holds the booking error taxonomy shared by the
// reservation, assignment and orchestration layers and its HTTP mapping.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrLockConflict means another request holds the slot lock.  The
	// client may retry.
	ErrLockConflict = errors.New("slot is being booked by another request, please retry")
	// ErrSlotUnavailable means the slot does not exist, has started or
	// belongs to another service.
	ErrSlotUnavailable = errors.New("slot is not available")
	// ErrSlotFullyBooked means the conditional increment found no capacity.
	ErrSlotFullyBooked = errors.New("slot is fully booked")
	// ErrNoAvailability means auto-assignment found no free slot.
	ErrNoAvailability = errors.New("no available slot for this service and date")
	// ErrNotFound covers missing bookings and bookings owned by someone else.
	ErrNotFound = errors.New("booking not found")
	// ErrAlreadyCancelled means the booking is already CANCELLED.
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrInvalidInput     = errors.New("invalid input")
)

// HTTPStatus maps an error to the response code.  Anything outside the
// taxonomy is an infrastructure failure.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrLockConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrSlotFullyBooked),
		errors.Is(err, ErrNoAvailability),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the client should simply try again.
func Retryable(err error) bool { return errors.Is(err, ErrLockConflict) }

// Public reports whether err belongs to the taxonomy, i.e. whether its
// message may be shown to the client.
func Public(err error) bool { return HTTPStatus(err) != http.StatusInternalServerError }

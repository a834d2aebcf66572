// Package reservation runs the database transactions that move slot
// capacity: booking a slot and cancelling a booking.  booked_count is only
// ever changed here, and always in the same transaction as the booking row
// it accounts for.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// Request identifies what to reserve.  ServiceID is optional; when set the
// slot must belong to that service.
type Request struct {
	SlotID    uint64
	UserID    uint64
	ServiceID uint64
}

// Result is the committed booking together with the slot as it stood at
// commit time.
type Result struct {
	Booking *model.Booking
	Slot    *model.Slot
}

type Manager struct {
	db       *sqlx.DB
	slots    *repository.SlotRepo
	bookings *repository.BookingRepo
	now      func() time.Time
}

func NewManager(db *sqlx.DB, slots *repository.SlotRepo, bookings *repository.BookingRepo) *Manager {
	return &Manager{db: db, slots: slots, bookings: bookings, now: time.Now}
}

// Reserve claims one unit of the slot's capacity and records a CONFIRMED
// booking, atomically.  A full slot aborts the transaction with
// ErrSlotFullyBooked; the failed conditional update is never retried here.
func (m *Manager) Reserve(ctx context.Context, req Request) (*Result, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slot, err := m.slots.GetTx(ctx, tx, req.SlotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrSlotUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %d: %w", req.SlotID, err)
	}
	if req.ServiceID != 0 && slot.ServiceID != req.ServiceID {
		return nil, apperrors.ErrSlotUnavailable
	}
	if !slot.StartsAt.After(m.now()) {
		return nil, apperrors.ErrSlotUnavailable
	}

	if err := m.slots.IncrementBookedTx(ctx, tx, slot.ID); err != nil {
		if errors.Is(err, repository.ErrNoCapacity) {
			return nil, apperrors.ErrSlotFullyBooked
		}
		return nil, fmt.Errorf("increment slot %d: %w", slot.ID, err)
	}

	booking, err := m.bookings.CreateTx(ctx, tx, req.UserID, slot.ID, model.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	// re-read under the row lock taken by the UPDATE
	after, err := m.slots.GetTx(ctx, tx, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("reload slot %d: %w", slot.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	committed = true
	return &Result{Booking: booking, Slot: after}, nil
}

// Cancel marks the user's booking CANCELLED and returns its capacity to
// the slot in the same transaction.  The booking row is locked first, so a
// concurrent second cancel sees CANCELLED and gets ErrAlreadyCancelled
// instead of decrementing again.  Bookings of other users are reported as
// ErrNotFound.
func (m *Manager) Cancel(ctx context.Context, bookingID, userID uint64) (*Result, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := m.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	if b.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return nil, apperrors.ErrAlreadyCancelled
	}
	held := b.HoldsCapacity()

	if err := m.bookings.MarkCancelledTx(ctx, tx, b.ID); err != nil {
		if errors.Is(err, repository.ErrNoRowsChanged) {
			return nil, apperrors.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel booking %d: %w", b.ID, err)
	}
	if held {
		if err := m.slots.DecrementBookedTx(ctx, tx, b.SlotID); err != nil {
			return nil, fmt.Errorf("decrement slot %d: %w", b.SlotID, err)
		}
	}

	slot, err := m.slots.GetTx(ctx, tx, b.SlotID)
	if err != nil {
		return nil, fmt.Errorf("reload slot %d: %w", b.SlotID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	committed = true
	b.Status = model.BookingCancelled
	return &Result{Booking: b, Slot: slot}, nil
}

// Get returns the user's booking and its slot.
func (m *Manager) Get(ctx context.Context, bookingID, userID uint64) (*Result, error) {
	b, err := m.bookings.GetByIDForUser(ctx, bookingID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}
	slot, err := m.slots.Get(ctx, b.SlotID)
	if err != nil {
		return nil, fmt.Errorf("load slot %d: %w", b.SlotID, err)
	}
	return &Result{Booking: b, Slot: slot}, nil
}

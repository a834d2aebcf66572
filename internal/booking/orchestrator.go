// Package booking drives a booking attempt end to end: optional
// auto-assignment, the slot lock, the reservation transaction, then the
// realtime broadcast and the downstream event.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/assign"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/realtime"
	"github.com/iliyamo/slot-booking/internal/reservation"
)

type Locker interface {
	Acquire(ctx context.Context, slotID uint64, requestID string) bool
	Release(ctx context.Context, slotID uint64, requestID string) bool
	WaitForLock(ctx context.Context, slotID uint64, requestID string, maxWait time.Duration) bool
}

type Reserver interface {
	Reserve(ctx context.Context, req reservation.Request) (*reservation.Result, error)
	Cancel(ctx context.Context, bookingID, userID uint64) (*reservation.Result, error)
	Get(ctx context.Context, bookingID, userID uint64) (*reservation.Result, error)
}

type Assigner interface {
	Assign(ctx context.Context, serviceID uint64, day time.Time) (*assign.Assignment, error)
}

type Notifier interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// State is the position of an attempt in INIT -> LOCKING -> RESERVING ->
// CONFIRMED | REJECTED.
type State string

const (
	StateInit      State = "INIT"
	StateLocking   State = "LOCKING"
	StateReserving State = "RESERVING"
	StateConfirmed State = "CONFIRMED"
	StateRejected  State = "REJECTED"
)

// Request is a booking attempt.  SlotID 0 asks for auto-assignment on Date.
type Request struct {
	UserID    uint64
	ServiceID uint64
	SlotID    uint64
	Date      time.Time
}

// Outcome is a committed booking and the slot after the change.
type Outcome struct {
	Booking  *model.Booking
	Slot     *model.Slot
	Assigned bool
}

type Orchestrator struct {
	locks       Locker
	reserver    Reserver
	assigner    Assigner
	broadcaster realtime.Broadcaster
	notifier    Notifier
	bookingWait time.Duration
	log         *zap.Logger
	now         func() time.Time
}

// New wires an Orchestrator.  bookingWait 0 makes a single lock attempt;
// a positive value polls for the lock up to that long.
func New(locks Locker, reserver Reserver, assigner Assigner, broadcaster realtime.Broadcaster, notifier Notifier, bookingWait time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		locks:       locks,
		reserver:    reserver,
		assigner:    assigner,
		broadcaster: broadcaster,
		notifier:    notifier,
		bookingWait: bookingWait,
		log:         log,
		now:         time.Now,
	}
}

// Book runs one booking attempt.  The slot lock, once taken, is released
// before Book returns on every path.
func (o *Orchestrator) Book(ctx context.Context, req Request) (*Outcome, error) {
	state := StateInit
	log := o.log.With(zap.Uint64("user_id", req.UserID), zap.Uint64("service_id", req.ServiceID))

	slotID := req.SlotID
	assigned := false
	if slotID == 0 {
		if req.Date.IsZero() {
			return nil, fmt.Errorf("%w: date is required without slotId", apperrors.ErrInvalidInput)
		}
		a, err := o.assigner.Assign(ctx, req.ServiceID, req.Date)
		if err != nil {
			o.reject(log, state, true, err)
			return nil, err
		}
		slotID, assigned = a.Slot.ID, true
		log = log.With(zap.Stringer("owner", a.Owner))
	}
	log = log.With(zap.Uint64("slot_id", slotID))

	state = StateLocking
	requestID := lock.NewRequestID()
	if !o.lock(ctx, slotID, requestID) {
		err := apperrors.ErrLockConflict
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		o.reject(log, state, assigned, err)
		return nil, err
	}

	state = StateReserving
	res, err := o.reserveLocked(ctx, slotID, requestID, reservation.Request{
		SlotID:    slotID,
		UserID:    req.UserID,
		ServiceID: req.ServiceID,
	})
	if err != nil {
		o.reject(log, state, assigned, err)
		return nil, err
	}

	state = StateConfirmed
	metrics.RecordBooking(metrics.OutcomeConfirmed, assigned)
	log.Info("booking confirmed", zap.Uint64("booking_id", res.Booking.ID), zap.String("state", string(state)))

	o.broadcaster.SlotChanged(ctx, *res.Slot)
	o.broadcaster.BookingConfirmed(ctx, req.UserID, realtime.BookingNotice{
		Service:  strconv.FormatUint(res.Slot.ServiceID, 10),
		Date:     res.Slot.Date(),
		Provider: res.Slot.Owner().String(),
	})
	o.notify(ctx, queue.TypeBookingConfirmed, res)

	return &Outcome{Booking: res.Booking, Slot: res.Slot, Assigned: assigned}, nil
}

func (o *Orchestrator) lock(ctx context.Context, slotID uint64, requestID string) bool {
	if o.bookingWait > 0 {
		return o.locks.WaitForLock(ctx, slotID, requestID, o.bookingWait)
	}
	return o.locks.Acquire(ctx, slotID, requestID)
}

func (o *Orchestrator) reserveLocked(ctx context.Context, slotID uint64, requestID string, req reservation.Request) (*reservation.Result, error) {
	defer func() {
		if !o.locks.Release(ctx, slotID, requestID) {
			o.log.Warn("slot lock was not held at release", zap.Uint64("slot_id", slotID))
		}
	}()
	return o.reserver.Reserve(ctx, req)
}

// Cancel cancels the user's booking, then broadcasts the freed capacity
// and emits booking.cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID, userID uint64) (*Outcome, error) {
	res, err := o.reserver.Cancel(ctx, bookingID, userID)
	if err != nil {
		metrics.RecordCancellation(outcomeFor(err))
		if !apperrors.Public(err) {
			o.log.Error("cancel booking", zap.Uint64("booking_id", bookingID), zap.Error(err))
		}
		return nil, err
	}
	metrics.RecordCancellation(metrics.OutcomeCancelled)
	o.log.Info("booking cancelled",
		zap.Uint64("booking_id", bookingID), zap.Uint64("user_id", userID), zap.Uint64("slot_id", res.Slot.ID))

	o.broadcaster.SlotChanged(ctx, *res.Slot)
	o.notify(ctx, queue.TypeBookingCancelled, res)
	return &Outcome{Booking: res.Booking, Slot: res.Slot}, nil
}

// Get returns the user's booking with its slot.
func (o *Orchestrator) Get(ctx context.Context, bookingID, userID uint64) (*Outcome, error) {
	res, err := o.reserver.Get(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Booking: res.Booking, Slot: res.Slot}, nil
}

func (o *Orchestrator) notify(ctx context.Context, eventType string, res *reservation.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ev := queue.NewBookingEvent(eventType, *res.Booking, *res.Slot, o.now())
	if err := o.notifier.Publish(ctx, ev); err != nil {
		o.log.Warn("publish booking event failed",
			zap.String("type", eventType), zap.Uint64("booking_id", res.Booking.ID), zap.Error(err))
	}
}

func (o *Orchestrator) reject(log *zap.Logger, state State, assigned bool, err error) {
	metrics.RecordBooking(outcomeFor(err), assigned)
	if apperrors.Public(err) || isContextErr(err) {
		log.Info("booking rejected", zap.String("state", string(state)), zap.String("reason", err.Error()))
		return
	}
	log.Error("booking failed", zap.String("state", string(state)), zap.Error(err))
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrLockConflict):
		return metrics.OutcomeLockConflict
	case errors.Is(err, apperrors.ErrSlotFullyBooked):
		return metrics.OutcomeFullyBooked
	case errors.Is(err, apperrors.ErrSlotUnavailable):
		return metrics.OutcomeSlotUnavailable
	case errors.Is(err, apperrors.ErrNoAvailability):
		return metrics.OutcomeNoAvailability
	case errors.Is(err, apperrors.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, apperrors.ErrAlreadyCancelled):
		return metrics.OutcomeAlreadyCanceled
	case isContextErr(err):
		return metrics.OutcomeAbandoned
	default:
		return metrics.OutcomeError
	}
}

// isContextErr reports whether the caller gave up, as opposed to the
// booking failing on its own.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

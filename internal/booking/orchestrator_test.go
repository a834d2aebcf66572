package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/assign"
	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/realtime"
	"github.com/iliyamo/slot-booking/internal/reservation"
)

var slotStart = time.Date(2030, 3, 3, 10, 0, 0, 0, time.UTC)

// memReserver applies the same guarded increment/decrement as the SQL
// repositories, under a mutex standing in for the row lock.
type memReserver struct {
	mu       sync.Mutex
	slots    map[uint64]*model.Slot
	bookings map[uint64]*model.Booking
	nextID   uint64
	hold     time.Duration
	err      error
}

func newMemReserver(slots ...model.Slot) *memReserver {
	r := &memReserver{slots: map[uint64]*model.Slot{}, bookings: map[uint64]*model.Booking{}}
	for i := range slots {
		s := slots[i]
		r.slots[s.ID] = &s
	}
	return r
}

func (r *memReserver) Reserve(_ context.Context, req reservation.Request) (*reservation.Result, error) {
	time.Sleep(r.hold)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.slots[req.SlotID]
	if !ok {
		return nil, apperrors.ErrSlotUnavailable
	}
	if s.BookedCount >= s.Capacity {
		return nil, apperrors.ErrSlotFullyBooked
	}
	s.BookedCount++
	r.nextID++
	b := &model.Booking{ID: r.nextID, UserID: req.UserID, SlotID: s.ID, Status: model.BookingConfirmed}
	r.bookings[b.ID] = b
	cp, bp := *s, *b
	return &reservation.Result{Booking: &bp, Slot: &cp}, nil
}

func (r *memReserver) Cancel(_ context.Context, bookingID, userID uint64) (*reservation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	if b.Status == model.BookingCancelled {
		return nil, apperrors.ErrAlreadyCancelled
	}
	b.Status = model.BookingCancelled
	s := r.slots[b.SlotID]
	s.BookedCount--
	cp, bp := *s, *b
	return &reservation.Result{Booking: &bp, Slot: &cp}, nil
}

func (r *memReserver) Get(_ context.Context, bookingID, userID uint64) (*reservation.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok || b.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	cp, bp := *r.slots[b.SlotID], *b
	return &reservation.Result{Booking: &bp, Slot: &cp}, nil
}

func (r *memReserver) booked(id uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[id].BookedCount
}

type spyBroadcaster struct {
	mu      sync.Mutex
	updates []model.Slot
	notices map[uint64]int
}

func (s *spyBroadcaster) SlotChanged(_ context.Context, slot model.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, slot)
}

func (s *spyBroadcaster) BookingConfirmed(_ context.Context, userID uint64, _ realtime.BookingNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notices == nil {
		s.notices = map[uint64]int{}
	}
	s.notices[userID]++
}

type spyNotifier struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (n *spyNotifier) Publish(_ context.Context, ev queue.BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type stubAssigner struct {
	a     *assign.Assignment
	err   error
	calls int
}

func (s *stubAssigner) Assign(context.Context, uint64, time.Time) (*assign.Assignment, error) {
	s.calls++
	return s.a, s.err
}

type fixture struct {
	o     *Orchestrator
	locks *lock.Manager
	res   *memReserver
	bc    *spyBroadcaster
	nt    *spyNotifier
	as    *stubAssigner
}

func newFixture(slots ...model.Slot) *fixture {
	cfg := config.LockConfig{TTL: 30 * time.Second, PollInterval: 5 * time.Millisecond, WaitTimeout: 50 * time.Millisecond, Prefix: "slot"}
	f := &fixture{
		locks: lock.NewManager(nil, nil, cfg, zap.NewNop()),
		res:   newMemReserver(slots...),
		bc:    &spyBroadcaster{},
		nt:    &spyNotifier{},
		as:    &stubAssigner{},
	}
	f.o = New(f.locks, f.res, f.as, f.bc, f.nt, 0, zap.NewNop())
	return f
}

func slot(id uint64, capacity int) model.Slot {
	return model.Slot{ID: id, OwnerType: model.OwnerProvider, OwnerID: 1, ServiceID: 5,
		StartsAt: slotStart, EndsAt: slotStart.Add(time.Hour), Capacity: capacity}
}

func (f *fixture) lockFree(t *testing.T, slotID uint64) {
	t.Helper()
	_, held := f.locks.Holder(context.Background(), slotID)
	assert.False(t, held, "slot lock must be released")
}

func TestBook_TenConcurrentOnCapacityOne(t *testing.T) {
	f := newFixture(slot(1, 1))
	f.res.hold = 10 * time.Millisecond

	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed, rejected := 0, 0
	start := make(chan struct{})
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			<-start
			_, err := f.o.Book(context.Background(), Request{UserID: user, ServiceID: 5, SlotID: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
				return
			}
			assert.True(t, errors.Is(err, apperrors.ErrLockConflict) || errors.Is(err, apperrors.ErrSlotFullyBooked), err)
			rejected++
		}(uint64(i + 1))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 9, rejected)
	assert.Equal(t, 1, f.res.booked(1))
	f.lockFree(t, 1)
}

func TestBook_CapacityThreeFourthRejected(t *testing.T) {
	f := newFixture(slot(2, 3))
	ctx := context.Background()

	for u := uint64(1); u <= 3; u++ {
		out, err := f.o.Book(ctx, Request{UserID: u, ServiceID: 5, SlotID: 2})
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, out.Booking.Status)
	}
	_, err := f.o.Book(ctx, Request{UserID: 4, ServiceID: 5, SlotID: 2})
	assert.ErrorIs(t, err, apperrors.ErrSlotFullyBooked)
	assert.Equal(t, 3, f.res.booked(2))
	f.lockFree(t, 2)

	require.Len(t, f.bc.updates, 3)
	assert.False(t, f.bc.updates[2].Available(), "last update reflects the full slot")
	assert.Len(t, f.nt.events, 3)
}

func TestBook_CancelThenRebook(t *testing.T) {
	f := newFixture(slot(3, 1))
	ctx := context.Background()

	first, err := f.o.Book(ctx, Request{UserID: 1, ServiceID: 5, SlotID: 3})
	require.NoError(t, err)
	_, err = f.o.Book(ctx, Request{UserID: 2, ServiceID: 5, SlotID: 3})
	require.ErrorIs(t, err, apperrors.ErrSlotFullyBooked)

	out, err := f.o.Cancel(ctx, first.Booking.ID, 1)
	require.NoError(t, err)
	assert.True(t, out.Slot.Available())

	_, err = f.o.Cancel(ctx, first.Booking.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
	assert.Equal(t, 0, f.res.booked(3), "second cancel must not decrement again")

	_, err = f.o.Book(ctx, Request{UserID: 2, ServiceID: 5, SlotID: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, f.res.booked(3))

	types := []string{}
	for _, ev := range f.nt.events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{queue.TypeBookingConfirmed, queue.TypeBookingCancelled, queue.TypeBookingConfirmed}, types)
}

func TestBook_LockConflictWhenHeld(t *testing.T) {
	f := newFixture(slot(4, 5))
	ctx := context.Background()
	require.True(t, f.locks.Acquire(ctx, 4, "someone-else"))

	_, err := f.o.Book(ctx, Request{UserID: 1, ServiceID: 5, SlotID: 4})
	assert.ErrorIs(t, err, apperrors.ErrLockConflict)
	assert.True(t, apperrors.Retryable(err))
	assert.Equal(t, 0, f.res.booked(4))

	holder, _ := f.locks.Holder(ctx, 4)
	assert.Equal(t, "someone-else", holder, "a rejected attempt must not touch another holder's lock")
}

func TestBook_CancelledWhileLockedIsNotConflict(t *testing.T) {
	f := newFixture(slot(4, 5))
	require.True(t, f.locks.Acquire(context.Background(), 4, "someone-else"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.o.Book(ctx, Request{UserID: 1, ServiceID: 5, SlotID: 4})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrLockConflict)
	assert.False(t, apperrors.Retryable(err))
	assert.Equal(t, metrics.OutcomeAbandoned, outcomeFor(err))
	assert.Equal(t, 0, f.res.booked(4))
}

func TestBook_WaitsForLockWhenConfigured(t *testing.T) {
	f := newFixture(slot(4, 5))
	f.o.bookingWait = time.Second
	ctx := context.Background()
	require.True(t, f.locks.Acquire(ctx, 4, "someone-else"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.locks.Release(ctx, 4, "someone-else")
	}()
	_, err := f.o.Book(ctx, Request{UserID: 1, ServiceID: 5, SlotID: 4})
	require.NoError(t, err)
	f.lockFree(t, 4)
}

func TestBook_ReleasesLockOnInfrastructureError(t *testing.T) {
	f := newFixture(slot(5, 1))
	f.res.err = errors.New("connection refused")

	_, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, SlotID: 5})
	require.Error(t, err)
	assert.False(t, apperrors.Public(err))
	f.lockFree(t, 5)
	assert.Empty(t, f.bc.updates)
	assert.Empty(t, f.nt.events)
}

func TestBook_ReleasesLockOnUnknownSlot(t *testing.T) {
	f := newFixture()
	_, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, SlotID: 99})
	assert.ErrorIs(t, err, apperrors.ErrSlotUnavailable)
	f.lockFree(t, 99)
}

func TestBook_AutoAssign(t *testing.T) {
	s := slot(6, 2)
	f := newFixture(s)
	f.as.a = &assign.Assignment{Owner: s.Owner(), Slot: s}

	out, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, Date: slotStart})
	require.NoError(t, err)
	assert.True(t, out.Assigned)
	assert.EqualValues(t, 6, out.Slot.ID)
	assert.Equal(t, 1, f.bc.notices[1])
}

func TestBook_NoAvailabilitySkipsLock(t *testing.T) {
	f := newFixture()
	f.as.err = apperrors.ErrNoAvailability

	_, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, Date: slotStart})
	assert.ErrorIs(t, err, apperrors.ErrNoAvailability)
	assert.Equal(t, 1, f.as.calls)
}

func TestBook_AutoAssignNeedsDate(t *testing.T) {
	f := newFixture()
	_, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, f.as.calls)
}

func TestBook_NotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(slot(7, 1))
	f.nt.err = errors.New("broker down")

	_, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, SlotID: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, f.res.booked(7))
}

func TestCancel_OtherUser(t *testing.T) {
	f := newFixture(slot(8, 1))
	out, err := f.o.Book(context.Background(), Request{UserID: 1, ServiceID: 5, SlotID: 8})
	require.NoError(t, err)

	_, err = f.o.Cancel(context.Background(), out.Booking.ID, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, f.res.booked(8))
}

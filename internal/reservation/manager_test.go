package reservation

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

var (
	now       = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	slotStart = now.Add(2 * time.Hour)

	slotCols    = []string{"id", "owner_type", "owner_id", "service_id", "starts_at", "ends_at", "capacity", "booked_count", "created_at"}
	bookingCols = []string{"id", "user_id", "slot_id", "status", "created_at", "updated_at"}

	selectSlot     = regexp.QuoteMeta(`FROM slots WHERE id = ?`)
	incrementSlot  = regexp.QuoteMeta(`UPDATE slots SET booked_count = booked_count + 1 WHERE id = ? AND booked_count < capacity`)
	decrementSlot  = regexp.QuoteMeta(`UPDATE slots SET booked_count = booked_count - 1 WHERE id = ? AND booked_count > 0`)
	insertBooking  = regexp.QuoteMeta(`INSERT INTO bookings (user_id, slot_id, status) VALUES (?, ?, ?)`)
	selectBooking  = regexp.QuoteMeta(`FROM bookings WHERE id = ?`)
	lockBooking    = regexp.QuoteMeta(`FROM bookings WHERE id = ? FOR UPDATE`)
	cancelBooking  = regexp.QuoteMeta(`UPDATE bookings SET status = 'CANCELLED' WHERE id = ? AND status <> 'CANCELLED'`)
	errConnRefused = errors.New("connection refused")
)

func setup(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	m := NewManager(sqlxDB, repository.NewSlotRepo(sqlxDB), repository.NewBookingRepo(sqlxDB))
	m.now = func() time.Time { return now }
	return m, mock
}

func slotRow(booked int) *sqlmock.Rows {
	return sqlmock.NewRows(slotCols).
		AddRow(7, "PROVIDER", 1, 5, slotStart, slotStart.Add(30*time.Minute), 3, booked, now)
}

func TestReserve_Success(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(1))
	mock.ExpectExec(incrementSlot).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertBooking).WithArgs(42, 7, "CONFIRMED").WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectQuery(selectBooking).WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 42, 7, "CONFIRMED", now, now))
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(2))
	mock.ExpectCommit()

	res, err := m.Reserve(context.Background(), Request{SlotID: 7, UserID: 42, ServiceID: 5})
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, res.Booking.Status)
	assert.Equal(t, 2, res.Slot.BookedCount)
	assert.True(t, res.Slot.Available())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_FullSlotRollsBack(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(3))
	mock.ExpectExec(incrementSlot).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.Reserve(context.Background(), Request{SlotID: 7, UserID: 42})
	assert.ErrorIs(t, err, apperrors.ErrSlotFullyBooked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_MissingSlot(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(8).WillReturnRows(sqlmock.NewRows(slotCols))
	mock.ExpectRollback()

	_, err := m.Reserve(context.Background(), Request{SlotID: 8, UserID: 42})
	assert.ErrorIs(t, err, apperrors.ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_WrongServiceOrPastSlot(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(0))
	mock.ExpectRollback()
	_, err := m.Reserve(context.Background(), Request{SlotID: 7, UserID: 42, ServiceID: 6})
	assert.ErrorIs(t, err, apperrors.ErrSlotUnavailable)

	m.now = func() time.Time { return slotStart.Add(time.Minute) }
	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(0))
	mock.ExpectRollback()
	_, err = m.Reserve(context.Background(), Request{SlotID: 7, UserID: 42})
	assert.ErrorIs(t, err, apperrors.ErrSlotUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_InsertFailureRollsBackIncrement(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(0))
	mock.ExpectExec(incrementSlot).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertBooking).WillReturnError(errConnRefused)
	mock.ExpectRollback()

	_, err := m.Reserve(context.Background(), Request{SlotID: 7, UserID: 42})
	require.Error(t, err)
	assert.ErrorIs(t, err, errConnRefused)
	assert.False(t, apperrors.Public(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_DecrementsOnce(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBooking).WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 42, 7, "CONFIRMED", now, now))
	mock.ExpectExec(cancelBooking).WithArgs(100).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrementSlot).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(0))
	mock.ExpectCommit()

	res, err := m.Cancel(context.Background(), 100, 42)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, res.Booking.Status)
	assert.Equal(t, 0, res.Slot.BookedCount)

	// second cancel: row already CANCELLED, no decrement expected
	mock.ExpectBegin()
	mock.ExpectQuery(lockBooking).WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 42, 7, "CANCELLED", now, now))
	mock.ExpectRollback()

	_, err = m.Cancel(context.Background(), 100, 42)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_OtherUsersBookingIsNotFound(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBooking).WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 42, 7, "CONFIRMED", now, now))
	mock.ExpectRollback()
	_, err := m.Cancel(context.Background(), 100, 43)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBooking).WithArgs(101).WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectRollback()
	_, err = m.Cancel(context.Background(), 101, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_PaymentFailedDoesNotDecrement(t *testing.T) {
	m, mock := setup(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockBooking).WithArgs(100).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(100, 42, 7, "PAYMENT_FAILED", now, now))
	mock.ExpectExec(cancelBooking).WithArgs(100).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectSlot).WithArgs(7).WillReturnRows(slotRow(1))
	mock.ExpectCommit()

	_, err := m.Cancel(context.Background(), 100, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

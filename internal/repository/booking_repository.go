package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/model"
)

const bookingColumns = `id, user_id, slot_id, status, created_at, updated_at`

// BookingRepo persists bookings.  Every write happens inside a transaction
// supplied by the caller, next to the matching booked_count change.
type BookingRepo struct {
	db *sqlx.DB
}

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a booking and reads the row back so the defaults
// (timestamps) are populated.  The caller must commit or roll back.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, userID, slotID uint64, status model.BookingStatus) (*model.Booking, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, slot_id, status) VALUES (?, ?, ?)`, userID, slotID, status)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	var b model.Booking
	if err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetForUpdateTx locks the booking row until tx ends, so two concurrent
// cancellations of the same booking are serialized.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// MarkCancelledTx flips the status to CANCELLED.  The status guard makes a
// second call a no-op reported as ErrNoRowsChanged.
func (r *BookingRepo) MarkCancelledTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED' WHERE id = ? AND status <> 'CANCELLED'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRowsChanged
	}
	return nil
}

// GetByIDForUser returns the booking only when it belongs to userID.
// Someone else's booking is reported as ErrNotFound.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

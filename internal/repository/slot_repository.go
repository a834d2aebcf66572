package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/model"
)

const slotColumns = `id, owner_type, owner_id, service_id, starts_at, ends_at, capacity, booked_count, created_at`

// SlotRepo reads slots and owns the only two statements allowed to change
// booked_count: the conditional increment and the guarded decrement.
type SlotRepo struct {
	db *sqlx.DB
}

// NewSlotRepo constructs a SlotRepo given a DB handle.
func NewSlotRepo(db *sqlx.DB) *SlotRepo { return &SlotRepo{db: db} }

// GetTx loads a slot inside tx.  Missing rows map to ErrNotFound.
func (r *SlotRepo) GetTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Slot, error) {
	var s model.Slot
	if err := tx.GetContext(ctx, &s, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// IncrementBookedTx claims one unit of capacity.  The WHERE guard makes the
// capacity check and the increment a single atomic statement; zero rows
// affected means the slot is full and ErrNoCapacity is returned.
func (r *SlotRepo) IncrementBookedTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET booked_count = booked_count + 1 WHERE id = ? AND booked_count < capacity`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoCapacity
	}
	return nil
}

// DecrementBookedTx gives one unit of capacity back.  It never goes below zero.
func (r *SlotRepo) DecrementBookedTx(ctx context.Context, tx *sqlx.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET booked_count = booked_count - 1 WHERE id = ? AND booked_count > 0`, id)
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

// ListByDate returns every slot of a service that starts within [from, to),
// ordered by start time.
func (r *SlotRepo) ListByDate(ctx context.Context, serviceID uint64, from, to time.Time) ([]model.Slot, error) {
	out := []model.Slot{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+slotColumns+` FROM slots WHERE service_id = ? AND starts_at >= ? AND starts_at < ? ORDER BY starts_at, id`,
		serviceID, from, to)
	return out, err
}

// InsertIgnore writes generated slots in one statement.  Rows colliding with
// the unique (owner_type, owner_id, service_id, starts_at) key are skipped,
// so regenerating a range is safe.  It returns the number of rows inserted.
func (r *SlotRepo) InsertIgnore(ctx context.Context, slots []model.Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT IGNORE INTO slots (owner_type, owner_id, service_id, starts_at, ends_at, capacity, booked_count) VALUES `)
	args := make([]interface{}, 0, len(slots)*6)
	for i, s := range slots {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, 0)")
		args = append(args, s.OwnerType, s.OwnerID, s.ServiceID, s.StartsAt, s.EndsAt, s.Capacity)
	}
	res, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Get loads a slot outside of any transaction.
func (r *SlotRepo) Get(ctx context.Context, id uint64) (*model.Slot, error) {
	var s model.Slot
	if err := r.db.GetContext(ctx, &s, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

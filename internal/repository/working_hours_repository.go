package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/model"
)

// WorkingHoursRepo reads an owner's weekly template from working_days and
// working_shifts.
type WorkingHoursRepo struct {
	db *sqlx.DB
}

func NewWorkingHoursRepo(db *sqlx.DB) *WorkingHoursRepo { return &WorkingHoursRepo{db: db} }

type workingHoursRow struct {
	Weekday     int           `db:"weekday"`
	Enabled     bool          `db:"enabled"`
	StartMinute sql.NullInt64 `db:"start_minute"`
	EndMinute   sql.NullInt64 `db:"end_minute"`
}

// Template returns the owner's template.  An owner without rows gets an
// empty template (every day off), not an error.
func (r *WorkingHoursRepo) Template(ctx context.Context, owner model.Owner) (*model.WorkingHoursTemplate, error) {
	const q = `SELECT d.weekday, d.enabled, s.start_minute, s.end_minute
FROM working_days d
LEFT JOIN working_shifts s
  ON s.owner_type = d.owner_type AND s.owner_id = d.owner_id AND s.weekday = d.weekday
WHERE d.owner_type = ? AND d.owner_id = ?
ORDER BY d.weekday, s.start_minute`
	var rows []workingHoursRow
	if err := r.db.SelectContext(ctx, &rows, q, owner.Type, owner.ID); err != nil {
		return nil, err
	}

	tpl := &model.WorkingHoursTemplate{Owner: owner, Days: make(map[time.Weekday]model.WorkingDay)}
	for _, row := range rows {
		wd := time.Weekday(row.Weekday)
		day := tpl.Days[wd]
		day.Enabled = row.Enabled
		if row.StartMinute.Valid && row.EndMinute.Valid {
			day.Shifts = append(day.Shifts, model.Shift{
				Start: time.Duration(row.StartMinute.Int64) * time.Minute,
				End:   time.Duration(row.EndMinute.Int64) * time.Minute,
			})
		}
		tpl.Days[wd] = day
	}
	return tpl, nil
}

// Package slots turns weekly working-hours templates into concrete slots.
package slots

import (
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Descriptor is a generated slot window before it is persisted.
type Descriptor struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// Generate yields back-to-back windows of the given duration inside each
// shift of the day.  A window is emitted only when it ends at or before the
// shift end, so a shift shorter than duration yields nothing.  Shifts are
// walked in start order and a window never starts before the previous one
// ended, which keeps the output non-overlapping even for overlapping shifts.
//
// date is truncated to midnight UTC.  The sequence is finite and computed
// lazily; it performs no I/O.
func Generate(date time.Time, shifts []model.Shift, duration time.Duration) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		if duration <= 0 || len(shifts) == 0 {
			return
		}
		day, _ := model.DayBounds(date)

		ordered := slices.Clone(shifts)
		slices.SortFunc(ordered, func(a, b model.Shift) int {
			if c := cmp.Compare(a.Start, b.Start); c != 0 {
				return c
			}
			return cmp.Compare(a.End, b.End)
		})

		var cursor time.Duration
		for _, sh := range ordered {
			start := max(sh.Start, cursor)
			for start+duration <= sh.End {
				d := Descriptor{
					StartsAt: day.Add(start),
					EndsAt:   day.Add(start + duration),
				}
				if !yield(d) {
					return
				}
				start += duration
				cursor = start
			}
		}
	}
}

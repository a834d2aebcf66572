// Package assign picks an owner and a slot for a booking that did not name
// one.
package assign

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/model"
)

// CandidateSource is the read side the assigner needs.  The repository's
// CandidateRepo satisfies it.
type CandidateSource interface {
	Candidates(ctx context.Context, serviceID uint64) ([]model.Owner, error)
	FreeSlots(ctx context.Context, owner model.Owner, serviceID uint64, from, to time.Time) ([]model.Slot, error)
	Load(ctx context.Context, owner model.Owner, from, to time.Time) (int, error)
}

// Assignment is the chosen owner, its earliest free slot and the load it
// was ranked by.
type Assignment struct {
	Owner model.Owner
	Slot  model.Slot
	Load  int
}

type Assigner struct {
	src CandidateSource
	log *zap.Logger
	now func() time.Time
}

func New(src CandidateSource, log *zap.Logger) *Assigner {
	return &Assigner{src: src, log: log, now: time.Now}
}

// Assign ranks every candidate owner that has a free slot on day for the
// service.  Order: fewest bookings that day, then earliest free slot, then
// owner type, owner id and slot id so that equal candidates always resolve
// the same way.  Slots that already started are ignored.  When no candidate
// has a free slot it returns ErrNoAvailability.
func (a *Assigner) Assign(ctx context.Context, serviceID uint64, day time.Time) (*Assignment, error) {
	dayStart, dayEnd := model.DayBounds(day)
	from := dayStart
	if now := a.now().UTC(); now.After(from) {
		from = now
	}
	if !from.Before(dayEnd) {
		return nil, apperrors.ErrNoAvailability
	}

	owners, err := a.src.Candidates(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ranked := make([]Assignment, 0, len(owners))
	for _, o := range owners {
		free, err := a.src.FreeSlots(ctx, o, serviceID, from, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("free slots for %s: %w", o, err)
		}
		if len(free) == 0 {
			continue
		}
		load, err := a.src.Load(ctx, o, dayStart, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("load for %s: %w", o, err)
		}
		ranked = append(ranked, Assignment{Owner: o, Slot: earliest(free), Load: load})
	}
	if len(ranked) == 0 {
		return nil, apperrors.ErrNoAvailability
	}

	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	best := ranked[0]
	a.log.Debug("auto-assigned",
		zap.Uint64("service_id", serviceID),
		zap.Stringer("owner", best.Owner),
		zap.Uint64("slot_id", best.Slot.ID),
		zap.Int("load", best.Load),
		zap.Int("candidates", len(ranked)))
	return &best, nil
}

func less(a, b Assignment) bool {
	if a.Load != b.Load {
		return a.Load < b.Load
	}
	if !a.Slot.StartsAt.Equal(b.Slot.StartsAt) {
		return a.Slot.StartsAt.Before(b.Slot.StartsAt)
	}
	if a.Owner != b.Owner {
		return a.Owner.Less(b.Owner)
	}
	return a.Slot.ID < b.Slot.ID
}

func earliest(slots []model.Slot) model.Slot {
	best := slots[0]
	for _, s := range slots[1:] {
		if s.StartsAt.Before(best.StartsAt) || (s.StartsAt.Equal(best.StartsAt) && s.ID < best.ID) {
			best = s
		}
	}
	return best
}

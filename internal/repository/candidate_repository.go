package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/model"
)

// CandidateRepo answers the auto-assigner's questions: who can perform a
// service, which of their slots are free and how busy they already are.
type CandidateRepo struct {
	db *sqlx.DB
}

func NewCandidateRepo(db *sqlx.DB) *CandidateRepo { return &CandidateRepo{db: db} }

// Candidates lists active providers bound to the service and active
// resources whose type matches the service's resource type, ordered by
// owner type then id.
func (r *CandidateRepo) Candidates(ctx context.Context, serviceID uint64) ([]model.Owner, error) {
	const q = `SELECT 'PROVIDER' AS owner_type, p.id AS owner_id
FROM providers p
JOIN provider_services ps ON ps.provider_id = p.id
WHERE ps.service_id = ? AND p.is_active = 1
UNION
SELECT 'RESOURCE' AS owner_type, r.id AS owner_id
FROM resources r
JOIN services s ON s.resource_type = r.resource_type
WHERE s.id = ? AND r.is_active = 1
ORDER BY owner_type, owner_id`
	out := []model.Owner{}
	err := r.db.SelectContext(ctx, &out, q, serviceID, serviceID)
	return out, err
}

// FreeSlots returns the owner's slots for the service starting in
// [from, to) that still have capacity, earliest first.
func (r *CandidateRepo) FreeSlots(ctx context.Context, owner model.Owner, serviceID uint64, from, to time.Time) ([]model.Slot, error) {
	out := []model.Slot{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+slotColumns+` FROM slots
WHERE owner_type = ? AND owner_id = ? AND service_id = ? AND starts_at >= ? AND starts_at < ? AND booked_count < capacity
ORDER BY starts_at, id`,
		owner.Type, owner.ID, serviceID, from, to)
	return out, err
}

// Load counts the owner's live bookings (PENDING or CONFIRMED) on slots
// starting in [from, to), across all services.
func (r *CandidateRepo) Load(ctx context.Context, owner model.Owner, from, to time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM bookings b
JOIN slots s ON s.id = b.slot_id
WHERE s.owner_type = ? AND s.owner_id = ? AND s.starts_at >= ? AND s.starts_at < ? AND b.status IN ('PENDING', 'CONFIRMED')`,
		owner.Type, owner.ID, from, to)
	return n, err
}

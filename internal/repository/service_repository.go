package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/slot-booking/internal/model"
)

// ServiceRepo reads service definitions.  Services are managed elsewhere;
// this service only needs duration, capacity and resource type.
type ServiceRepo struct {
	db *sqlx.DB
}

func NewServiceRepo(db *sqlx.DB) *ServiceRepo { return &ServiceRepo{db: db} }

func (r *ServiceRepo) GetService(ctx context.Context, id uint64) (*model.Service, error) {
	var s model.Service
	err := r.db.GetContext(ctx, &s,
		`SELECT id, name, resource_type, duration_min, capacity FROM services WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

package model

import (
	"database/sql"
	"time"
)

// Service is what a customer books.  Duration and Capacity are copied onto
// every slot generated for it.  ResourceType, when set, makes resources of
// that type candidates for auto-assignment.
type Service struct {
	ID           uint64         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	ResourceType sql.NullString `db:"resource_type" json:"-"`
	DurationMin  int            `db:"duration_min" json:"durationMin"`
	Capacity     int            `db:"capacity" json:"capacity"`
}

func (s Service) Duration() time.Duration { return time.Duration(s.DurationMin) * time.Minute }

package slots

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
)

// MaxRangeDays bounds a single materialization request.
const MaxRangeDays = 92

type TemplateSource interface {
	Template(ctx context.Context, owner model.Owner) (*model.WorkingHoursTemplate, error)
}

type ServiceSource interface {
	GetService(ctx context.Context, id uint64) (*model.Service, error)
}

type SlotWriter interface {
	InsertIgnore(ctx context.Context, slots []model.Slot) (int64, error)
}

// Materializer persists generated slots for an owner and a service.
type Materializer struct {
	templates TemplateSource
	services  ServiceSource
	writer    SlotWriter
	log       *zap.Logger
}

func NewMaterializer(templates TemplateSource, services ServiceSource, writer SlotWriter, log *zap.Logger) *Materializer {
	return &Materializer{templates: templates, services: services, writer: writer, log: log}
}

// Materialize generates slots for every day in [from, to] (inclusive, UTC
// dates) and inserts them with skip-if-exists semantics.  It returns how
// many new slots were written; re-running over the same range returns 0.
func (m *Materializer) Materialize(ctx context.Context, owner model.Owner, serviceID uint64, from, to time.Time) (int64, error) {
	from, _ = model.DayBounds(from)
	to, _ = model.DayBounds(to)
	if to.Before(from) {
		return 0, fmt.Errorf("%w: range ends before it starts", apperrors.ErrInvalidInput)
	}
	if days := int(to.Sub(from)/(24*time.Hour)) + 1; days > MaxRangeDays {
		return 0, fmt.Errorf("%w: range longer than %d days", apperrors.ErrInvalidInput, MaxRangeDays)
	}

	svc, err := m.services.GetService(ctx, serviceID)
	if err != nil {
		return 0, fmt.Errorf("load service %d: %w", serviceID, err)
	}
	tpl, err := m.templates.Template(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("load template for %s: %w", owner, err)
	}

	var batch []model.Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for d := range Generate(day, tpl.ShiftsOn(day.Weekday()), svc.Duration()) {
			batch = append(batch, model.Slot{
				OwnerType: owner.Type,
				OwnerID:   owner.ID,
				ServiceID: svc.ID,
				StartsAt:  d.StartsAt,
				EndsAt:    d.EndsAt,
				Capacity:  svc.Capacity,
			})
		}
	}

	created, err := m.writer.InsertIgnore(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert slots: %w", err)
	}
	metrics.SlotsGeneratedTotal.Add(float64(created))
	m.log.Info("slots materialized",
		zap.Stringer("owner", owner),
		zap.Uint64("service_id", serviceID),
		zap.Int("generated", len(batch)),
		zap.Int64("created", created))
	return created, nil
}

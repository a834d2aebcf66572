package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// SlotGenerator is implemented by *slots.Materializer.
type SlotGenerator interface {
	Materialize(ctx context.Context, owner model.Owner, serviceID uint64, from, to time.Time) (int64, error)
}

// OwnerSlotHandler lets owners turn working-hours templates into concrete
// bookable slots.
type OwnerSlotHandler struct {
	gen SlotGenerator
	log *zap.Logger
}

func NewOwnerSlotHandler(gen SlotGenerator, log *zap.Logger) *OwnerSlotHandler {
	if gen == nil {
		panic("nil generator passed to NewOwnerSlotHandler")
	}
	return &OwnerSlotHandler{gen: gen, log: log}
}

type generateSlotsRequest struct {
	OwnerType string `json:"ownerType" validate:"required"`
	OwnerID   uint64 `json:"ownerId" validate:"required,gt=0"`
	ServiceID uint64 `json:"serviceId" validate:"required,gt=0"`
	From      string `json:"from" validate:"required,datetime=2006-01-02"`
	To        string `json:"to" validate:"required,datetime=2006-01-02"`
}

// Generate handles POST /v1/owner/slots/generate.  Existing slots are left
// untouched, so the call can be repeated; the response carries how many
// slots were new.
func (h *OwnerSlotHandler) Generate(c echo.Context) error {
	var body generateSlotsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return invalid(c, err)
	}
	ownerType, err := model.ParseOwnerType(body.OwnerType)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "ownerType must be PROVIDER or RESOURCE"})
	}
	from, errFrom := model.ParseDate(body.From)
	to, errTo := model.ParseDate(body.To)
	if errFrom != nil || errTo != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid date range"})
	}

	owner := model.Owner{Type: ownerType, ID: body.OwnerID}
	created, err := h.gen.Materialize(c.Request().Context(), owner, body.ServiceID, from, to)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "service not found"})
	default:
		h.log.Error("generate slots", zap.Stringer("owner", owner), zap.Uint64("service_id", body.ServiceID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal server error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"owner":     owner,
		"serviceId": body.ServiceID,
		"from":      body.From,
		"to":        body.To,
		"created":   created,
	})
}

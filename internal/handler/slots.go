package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/model"
)

// SlotLister is implemented by *repository.SlotRepo.
type SlotLister interface {
	ListByDate(ctx context.Context, serviceID uint64, from, to time.Time) ([]model.Slot, error)
}

// SlotHandler serves the public availability listing.  Realtime clients
// call it after (re)connecting and then apply slot-update messages on top.
type SlotHandler struct {
	slots SlotLister
	log   *zap.Logger
}

func NewSlotHandler(slots SlotLister, log *zap.Logger) *SlotHandler {
	return &SlotHandler{slots: slots, log: log}
}

type slotView struct {
	model.Slot
	Available bool `json:"available"`
}

// List handles GET /v1/slots?date=YYYY-MM-DD&serviceId=N.
func (h *SlotHandler) List(c echo.Context) error {
	date, err := model.ParseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "date must be a date in YYYY-MM-DD format"})
	}
	serviceID, err := strconv.ParseUint(c.QueryParam("serviceId"), 10, 64)
	if err != nil || serviceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid serviceId"})
	}

	from, to := model.DayBounds(date)
	slots, err := h.slots.ListByDate(c.Request().Context(), serviceID, from, to)
	if err != nil {
		h.log.Error("list slots", zap.Uint64("service_id", serviceID), zap.Time("date", date), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal server error"})
	}

	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{Slot: s, Available: s.Available()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":      date.Format(model.DateLayout),
		"serviceId": serviceID,
		"slots":     out,
	})
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/apperrors"
	"github.com/iliyamo/slot-booking/internal/booking"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/model"
)

// BookingService is implemented by *booking.Orchestrator.
type BookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Outcome, error)
	Cancel(ctx context.Context, bookingID, userID uint64) (*booking.Outcome, error)
	Get(ctx context.Context, bookingID, userID uint64) (*booking.Outcome, error)
}

// BookingHandler serves the customer booking endpoints.  JWT and role
// checks run in middleware before any of these methods.
type BookingHandler struct {
	svc BookingService
	log *zap.Logger
}

func NewBookingHandler(svc BookingService, log *zap.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc, log: log}
}

type createBookingRequest struct {
	ServiceID uint64 `json:"serviceId" validate:"required,gt=0"`
	SlotID    uint64 `json:"slotId" validate:"omitempty,gt=0"`
	Date      string `json:"date" validate:"required_without=SlotID,omitempty,datetime=2006-01-02"`
}

type bookingResponse struct {
	ID        uint64              `json:"id"`
	UserID    uint64              `json:"userId"`
	Status    model.BookingStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	Slot      model.Slot          `json:"slot"`
}

func toBookingResponse(out *booking.Outcome) bookingResponse {
	return bookingResponse{
		ID:        out.Booking.ID,
		UserID:    out.Booking.UserID,
		Status:    out.Booking.Status,
		CreatedAt: out.Booking.CreatedAt,
		Slot:      *out.Slot,
	}
}

// Create handles POST /v1/bookings (and the /bookings alias).  Without a
// slotId the booking is auto-assigned to the least loaded provider or
// resource on the given date.  Returns 201 with the chosen slot id.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return invalid(c, err)
	}

	req := booking.Request{UserID: userID, ServiceID: body.ServiceID, SlotID: body.SlotID}
	if body.Date != "" {
		d, err := model.ParseDate(body.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid date"})
		}
		req.Date = d
	}

	out, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "booking confirmed",
		"slotId":  out.Slot.ID,
		"booking": toBookingResponse(out),
	})
}

// Cancel handles PATCH /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid booking id"})
	}
	if _, err := h.svc.Cancel(c.Request().Context(), id, userID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking cancelled"})
}

// Get handles GET /v1/bookings/:id.  Bookings of other users are reported
// as not found.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid booking id"})
	}
	out, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingResponse(out)})
}

// fail writes the taxonomy error; anything else is logged and hidden.
func (h *BookingHandler) fail(c echo.Context, err error) error {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("booking request failed",
			zap.String("method", c.Request().Method), zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(status, echo.Map{"message": "internal server error"})
	}
	if apperrors.Retryable(err) {
		return c.JSON(status, echo.Map{"message": err.Error(), "retryable": true})
	}
	return c.JSON(status, echo.Map{"message": err.Error()})
}

func invalid(c echo.Context, err error) error {
	if fes := fieldErrors(err); len(fes) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": fes[0].Message, "details": fes})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request"})
}

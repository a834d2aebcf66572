package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/utils"
)

// RegisterCustomer registers the booking endpoints.  All routes require a
// valid JWT and the CUSTOMER role, and pass through the rate limiter.
// /bookings is kept as an alias of /v1/bookings for older clients.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	for _, prefix := range []string{"/v1/bookings", "/bookings"} {
		g := e.Group(
			prefix,
			middleware.JWTAuth(jwtSecret),
			middleware.RequireRole(utils.RoleCustomer),
			limiter,
		)
		g.POST("", h.Create)
		g.PATCH("/:id/cancel", h.Cancel)
		g.GET("/:id", h.Get)
	}
}

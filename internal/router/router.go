package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/slot-booking/internal/handler"
)

// RegisterRoutes registers the operational endpoints: liveness, readiness
// and the Prometheus scrape target.  None of them require authentication.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers endpoints open to guests: the availability
// listing and the realtime feed.  The websocket handler checks an optional
// token itself since browsers cannot always send headers on upgrade.
func RegisterPublic(e *echo.Echo, slots *handler.SlotHandler, rt *handler.RealtimeHandler) {
	e.GET("/v1/slots", slots.List)
	e.GET("/v1/ws", rt.ServeWS)
}

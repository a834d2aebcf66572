package handler // HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers.  It always answers
// "ok" while the process is serving.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// LockState is satisfied by *lock.Manager.
type LockState interface {
	Degraded() bool
}

// ReadyHandler answers GET /readyz.  The relational store is required; a
// degraded lock store is reported but does not fail readiness since
// bookings keep working on the in-process fallback.
type ReadyHandler struct {
	db    Pinger
	locks LockState
}

func NewReadyHandler(db Pinger, locks LockState) *ReadyHandler {
	return &ReadyHandler{db: db, locks: locks}
}

func (h *ReadyHandler) Ready(c echo.Context) error {
	lockStore := "redis"
	if h.locks.Degraded() {
		lockStore = "degraded"
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "database": "down", "lockStore": lockStore})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "up", "lockStore": lockStore})
}

package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/realtime"
	"github.com/iliyamo/slot-booking/internal/utils"
)

// RealtimeHandler upgrades GET /v1/ws to a websocket feed of slot updates.
// Guests may connect and subscribe; a valid access token additionally
// routes private booking-confirmed notices to the connection.
type RealtimeHandler struct {
	hub       *realtime.Hub
	upgrader  *websocket.Upgrader
	cfg       config.RealtimeConfig
	jwtSecret string
	log       *zap.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, cfg config.RealtimeConfig, jwtSecret string, log *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:       hub,
		upgrader:  realtime.NewUpgrader(cfg),
		cfg:       cfg,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// ServeWS reads the token from the Authorization header or, for browsers
// that cannot set headers on a websocket, the token query parameter.  A
// token that is present but invalid is refused before the upgrade.
func (h *RealtimeHandler) ServeWS(c echo.Context) error {
	var userID uint64
	raw, ok := middleware.BearerToken(c.Request())
	if !ok {
		raw = c.QueryParam("token")
	}
	if raw != "" {
		claims, err := utils.ParseAccessToken(h.jwtSecret, raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		userID = claims.UserID
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	realtime.NewClient(conn, h.hub, userID, h.cfg, h.log).Serve()
	return nil
}

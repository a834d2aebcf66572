package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
)

const maxFrameBytes = 4096

// NewUpgrader returns a websocket upgrader that only accepts the configured
// origins ("*" accepts any).
func NewUpgrader(cfg config.RealtimeConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(cfg.AllowedOrigins, "*") {
				return true
			}
			return slices.Contains(cfg.AllowedOrigins, origin)
		},
	}
}

// Client is one websocket connection.  Outbound messages go through a
// bounded queue drained by the write loop; when the queue is full new
// messages are dropped.
type Client struct {
	id     string
	userID uint64
	conn   *websocket.Conn
	hub    *Hub
	cfg    config.RealtimeConfig
	log    *zap.Logger

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, userID uint64, cfg config.RealtimeConfig, log *zap.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		hub:    hub,
		cfg:    cfg,
		log:    log.With(zap.String("conn_id", id), zap.Uint64("user_id", userID)),
		send:   make(chan Message, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() uint64 { return c.userID }

func (c *Client) Deliver(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Serve runs the connection until the peer goes away.  It blocks.
func (c *Client) Serve() {
	c.hub.Register(c)
	c.log.Debug("realtime client connected")
	go c.writeLoop()
	c.readLoop()
	c.close()
	c.hub.Unregister(c)
	c.log.Debug("realtime client disconnected")
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readLoop() {
	pongWait := c.cfg.PingInterval * 2
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.Deliver(errorMessage("malformed message"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("realtime read failed", zap.Error(err))
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Event {
	case EventSubscribe, EventUnsubscribe:
		var req SubscribeRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.Deliver(errorMessage("invalid subscription payload"))
			return
		}
		topic, err := req.Topic()
		if err != nil {
			c.Deliver(errorMessage(err.Error()))
			return
		}
		if msg.Event == EventSubscribe {
			c.hub.Subscribe(c, topic)
		} else {
			c.hub.Unsubscribe(c, topic)
		}
	default:
		c.Deliver(errorMessage("unknown event " + msg.Event))
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("realtime write failed", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.close()
				return
			}
		}
	}
}

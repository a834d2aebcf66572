package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/config"
)

func startServer(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	cfg := config.RealtimeConfig{SendBuffer: 8, PingInterval: time.Second, WriteTimeout: time.Second, AllowedOrigins: []string{"*"}}
	up := NewUpgrader(cfg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, hub, 0, cfg, zap.NewNop()).Serve()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClient_SubscribeReceivesUpdate(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := startServer(t, hub)

	sub, _ := NewMessage(EventSubscribe, map[string]any{"date": testDate, "serviceId": 5})
	require.NoError(t, conn.WriteJSON(sub))
	require.Eventually(t, func() bool { return hub.Subscribers(ServiceTopic(testDate, 5)) == 1 },
		time.Second, 5*time.Millisecond)

	newTestBroadcaster(hub).SlotChanged(context.Background(), testSlot)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventSlotUpdate, got.Event)

	var upd SlotUpdate
	require.NoError(t, json.Unmarshal(got.Data, &upd))
	assert.EqualValues(t, 7, upd.SlotID)
	assert.False(t, upd.Available)
}

func TestClient_InvalidSubscriptionGetsError(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := startServer(t, hub)

	bad, _ := NewMessage(EventSubscribe, map[string]any{"date": "tomorrow", "serviceId": 5})
	require.NoError(t, conn.WriteJSON(bad))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventError, got.Event)
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := startServer(t, hub)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

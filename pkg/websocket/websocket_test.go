package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/errwatch/pkg/eventbus"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestServer(t *testing.T, cfg Config) (*eventbus.EventBus, *Handler, *httptest.Server) {
	t.Helper()
	bus := eventbus.NewEventBus(eventbus.DefaultConfig())
	h := NewHandler(bus, cfg)

	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		bus.Stop()
		srv.Close()
	})
	return bus, h, srv
}

func TestHandler_StreamsEvents(t *testing.T) {
	bus, h, srv := newTestServer(t, DefaultConfig())
	conn := dial(t, srv, "")

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1 && h.Connections() == 1
	}, time.Second, 10*time.Millisecond)

	_, err := bus.PublishPayload(eventbus.EventTypeNewError, map[string]string{"id": "abc", "message": "boom"})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type     string            `json:"type"`
		Payload  map[string]string `json:"payload"`
		Sequence int64             `json:"sequence"`
	}
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, eventbus.EventTypeNewError, ev.Type)
	assert.Equal(t, "abc", ev.Payload["id"])
	assert.Equal(t, int64(1), ev.Sequence)
}

func TestHandler_TypeFilter(t *testing.T) {
	bus, _, srv := newTestServer(t, DefaultConfig())
	conn := dial(t, srv, "?types=badge_updated")

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err := bus.PublishPayload(eventbus.EventTypeNewError, map[string]string{"id": "skip"})
	require.NoError(t, err)
	_, err = bus.PublishPayload(eventbus.EventTypeBadgeUpdated, eventbus.BadgePayload{Text: "1"})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev eventbus.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, eventbus.EventTypeBadgeUpdated, ev.Type)
}

func TestHandler_PingPong(t *testing.T) {
	bus, _, srv := newTestServer(t, DefaultConfig())
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "pong", msg["type"])
}

func TestHandler_DisconnectUnsubscribes(t *testing.T) {
	bus, h, srv := newTestServer(t, DefaultConfig())
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 0 && h.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsOrigin(t *testing.T) {
	bus, _, srv := newTestServer(t, Config{AllowedOrigins: []string{"http://localhost:3000"}})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	assert.Equal(t, []string{"NEW_ERROR", "BADGE_UPDATED"}, parseTypes("new_error, BADGE_UPDATED,"))
}

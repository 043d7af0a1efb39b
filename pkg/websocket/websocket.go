// Package websocket streams event bus events to presentation surfaces over
// WebSocket connections.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/armorclaw/errwatch/pkg/eventbus"
	"github.com/armorclaw/errwatch/pkg/logger"
)

// Config holds WebSocket handler configuration
type Config struct {
	AllowedOrigins []string      // Empty allows any origin
	PingInterval   time.Duration // Keepalive ping period
	WriteTimeout   time.Duration
	ReadLimit      int64
}

// DefaultConfig returns default handler configuration
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadLimit:    64 * 1024,
	}
}

// Handler upgrades HTTP requests and streams bus events to the client.
// Clients may narrow the stream with ?types=NEW_ERROR,BADGE_UPDATED.
type Handler struct {
	config      Config
	bus         *eventbus.EventBus
	upgrader    websocket.Upgrader
	connections atomic.Int64
	log         *logger.Logger
}

// clientMessage is sent by clients on the socket
type clientMessage struct {
	Type string `json:"type"`
}

// NewHandler creates a handler streaming from bus
func NewHandler(bus *eventbus.EventBus, config Config) *Handler {
	defaults := DefaultConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = defaults.ReadLimit
	}

	h := &Handler{
		config: config,
		bus:    bus,
		log:    logger.Global().WithComponent("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Connections returns the number of open client connections
func (h *Handler) Connections() int {
	return int(h.connections.Load())
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return
	}

	sub, err := h.bus.Subscribe(eventbus.EventFilter{EventTypes: parseTypes(r.URL.Query().Get("types"))})
	if err != nil {
		h.log.Warn("subscription rejected", "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber limit reached"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}

	h.connections.Add(1)
	h.log.Info("client connected", "subscriber_id", sub.ID, "remote", r.RemoteAddr)

	replies := make(chan []byte, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, sub, replies)
	}()
	h.readPump(conn, sub, replies)

	// unsubscribing closes the event channel, which ends the write pump
	_ = h.bus.Unsubscribe(sub.ID)
	<-done
	conn.Close()

	h.connections.Add(-1)
	h.log.Info("client disconnected", "subscriber_id", sub.ID)
}

func (h *Handler) readPump(conn *websocket.Conn, sub *eventbus.Subscriber, replies chan<- []byte) {
	readWait := 2 * h.config.PingInterval
	conn.SetReadLimit(h.config.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		sub.Touch()
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read error", "subscriber_id", sub.ID, "error", err)
			}
			return
		}
		sub.Touch()
		conn.SetReadDeadline(time.Now().Add(readWait))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			reply, _ := json.Marshal(map[string]interface{}{
				"type":     "pong",
				"received": time.Now().UTC(),
			})
			select {
			case replies <- reply:
			default:
			}
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *eventbus.Subscriber, replies <-chan []byte) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := event.ToJSON()
			if err != nil {
				h.log.Warn("event marshal failed", slog.String("event_type", event.Type), slog.Any("error", err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}

		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// parseTypes splits a comma separated event type list
func parseTypes(raw string) []string {
	if raw == "" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, strings.ToUpper(t))
		}
	}
	return types
}

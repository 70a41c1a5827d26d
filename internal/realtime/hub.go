// ABOUTME: WebSocket hub binding client connections to sessions
// ABOUTME: Last registration wins; delivery is fire-and-forget

package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/carebridge/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is the frame exchanged with real-time clients. Clients send
// register events; the server sends registered acks and reply pushes.
type Event struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id,omitempty"`
	Message         string `json:"message,omitempty"`
	RespondingAgent string `json:"responding_agent,omitempty"`
}

// clientConn wraps a websocket connection with a write lock, since
// gorilla/websocket permits only one concurrent writer.
type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *clientConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks which client connection, if any, is watching each session.
// A session has at most one watcher; registering again replaces the old
// binding.
type Hub struct {
	mu        sync.RWMutex
	bySession map[string]*clientConn
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHub creates an empty real-time hub.
func NewHub() *Hub {
	return &Hub{
		bySession: make(map[string]*clientConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: slog.Default().With("component", "realtime"),
	}
}

// ServeHTTP upgrades an HTTP request to a websocket and serves its event loop
// until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &clientConn{conn: conn}
	metrics.WebsocketOpened()
	h.logger.Info("client connected", "remote_addr", conn.RemoteAddr())

	defer func() {
		h.unregister(client)
		conn.Close()
		metrics.WebsocketClosed()
		h.logger.Info("client disconnected", "remote_addr", conn.RemoteAddr())
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go h.pingLoop(client, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			h.logger.Warn("discarding unparseable event", "error", err)
			continue
		}

		switch ev.Type {
		case "register":
			if ev.SessionID == "" {
				h.logger.Warn("register event missing session_id")
				continue
			}
			h.register(ev.SessionID, client)
			if err := client.writeJSON(Event{Type: "registered", SessionID: ev.SessionID}); err != nil {
				return
			}
		default:
			h.logger.Debug("ignoring event", "type", ev.Type)
		}
	}
}

// Deliver pushes a reply to the session's registered client, if any.
// A session with no watcher is not an error; the push is simply skipped.
func (h *Hub) Deliver(sessionID, message, respondingAgent string) {
	h.mu.RLock()
	client := h.bySession[sessionID]
	h.mu.RUnlock()

	if client == nil {
		return
	}

	err := client.writeJSON(Event{
		Type:            "reply",
		Message:         message,
		RespondingAgent: respondingAgent,
	})
	if err != nil {
		h.logger.Warn("reply push failed",
			"session_id", sessionID,
			"error", err)
		return
	}

	h.logger.Debug("reply pushed",
		"session_id", sessionID,
		"responding_agent", respondingAgent)
}

// Watchers returns the number of sessions with a registered client.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySession)
}

func (h *Hub) register(sessionID string, client *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bySession[sessionID] = client
	h.logger.Info("session registered", "session_id", sessionID)
}

// unregister removes every session binding held by this connection. The scan
// is linear, which is fine at the session counts a single process serves.
func (h *Hub) unregister(client *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, c := range h.bySession {
		if c == client {
			delete(h.bySession, sessionID)
			h.logger.Info("session unregistered", "session_id", sessionID)
		}
	}
}

func (h *Hub) pingLoop(client *clientConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

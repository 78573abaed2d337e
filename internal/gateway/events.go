package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glintcart/glintbot/internal/logging"
)

// Event is one entry on the dashboard feed.
type Event struct {
	Type    string    `json:"type"` // "call_updated" | "confirmation_resolved"
	CallID  string    `json:"callId,omitempty"`
	OrderID string    `json:"orderId,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// EventFeed fans call lifecycle events out to connected WebSocket
// dashboard clients. Slow clients are dropped rather than blocking the
// webhook path.
type EventFeed struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan Event
}

func NewEventFeed(log *logging.Logger, allowedOrigins []string) *EventFeed {
	return &EventFeed{
		log:     log.Sub("events"),
		clients: make(map[*feedClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin validates WebSocket Origin headers. No Origin
// header means a non-browser client and is allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// handleEvents upgrades a dashboard client onto the feed. Auth accepts
// either a bearer header or a token query parameter, since browser
// WebSocket clients cannot set headers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if s.cfg.Gateway.Auth.Token == "" || !safeEqual(token, s.cfg.Gateway.Auth.Token) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.feed.Serve(w, r)
}

// Serve upgrades the connection and pumps events until the client goes
// away.
func (f *EventFeed) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &feedClient{conn: conn, send: make(chan Event, 32)}
	f.mu.Lock()
	f.clients[client] = struct{}{}
	n := len(f.clients)
	f.mu.Unlock()
	f.log.Debug().Str("remote", r.RemoteAddr).Int("clients", n).Msg("feed client connected")

	go f.writePump(client)
	f.readPump(client)
}

func (f *EventFeed) writePump(c *feedClient) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(ev); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readPump discards inbound frames and detects disconnects.
func (f *EventFeed) readPump(c *feedClient) {
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	f.drop(c)
}

func (f *EventFeed) drop(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
}

// Publish broadcasts an event to every connected client. Clients whose
// buffers are full are disconnected.
func (f *EventFeed) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	f.mu.Lock()
	var stalled []*feedClient
	for c := range f.clients {
		select {
		case c.send <- ev:
		default:
			stalled = append(stalled, c)
		}
	}
	for _, c := range stalled {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()

	if len(stalled) > 0 {
		f.log.Warn().Int("dropped", len(stalled)).Msg("dropped stalled feed clients")
	}
}

// CloseAll disconnects every client, used during shutdown.
func (f *EventFeed) CloseAll() {
	f.mu.Lock()
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
}

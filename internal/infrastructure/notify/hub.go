package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"tg_wallet/internal/domain/entity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 64
)

// Message types sent to WebSocket clients.
const (
	MessageNotification = "notification"
	MessageBalance      = "balance"
)

// Envelope is the frame written to WebSocket clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts notifications and balance updates to connected WebSocket clients.
// A client whose buffer is full is disconnected rather than slowing the sender.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
	nextID   *atomic.Uint64

	mu      sync.Mutex
	clients map[string]*hubClient
	closed  bool
}

// NewHub creates a Hub. allowedOrigins empty or containing "*" accepts any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		logger:  logger.Named("NotificationHub"),
		nextID:  atomic.NewUint64(0),
		clients: make(map[string]*hubClient),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := &hubClient{
		id:   fmt.Sprintf("ws-%d", h.nextID.Inc()),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	h.logger.Debug("WebSocket client connected", zap.String("client", client.id))
	go h.writePump(client)
	go h.readPump(client)
}

// Notify implements port.Notifier.
func (h *Hub) Notify(_ context.Context, n entity.Notification) {
	h.Broadcast(MessageNotification, n)
}

// PublishBalance sends a balance update to every client.
func (h *Hub) PublishBalance(b entity.Balance) {
	h.Broadcast(MessageBalance, b)
}

// Broadcast encodes data in an Envelope and queues it for every client.
func (h *Hub) Broadcast(messageType string, data any) {
	payload, err := json.Marshal(Envelope{Type: messageType, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode WebSocket message", zap.String("type", messageType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping slow WebSocket client", zap.String("client", id))
			h.removeLocked(id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.clients {
		h.removeLocked(id)
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *Hub) removeLocked(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.send)
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.logger.Debug("WebSocket client disconnected", zap.String("client", c.id))
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client", c.id), zap.Error(err))
				h.remove(c.id)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c.id)
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects.
func (h *Hub) readPump(c *hubClient) {
	defer h.remove(c.id)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WebSocket read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

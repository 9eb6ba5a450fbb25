package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/core/domain"
)

const (
	writeWait     = 5 * time.Second
	clientBufSize = 16
)

type Event struct {
	Type         string               `json:"type"`
	Cart         *CartResponse        `json:"cart,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes cart changes and notifications to connected websocket clients.
// It implements port.CartObserver. Broadcasts never block; a client whose
// buffer is full is dropped.
type Hub struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	latest  domain.Cart
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub starts from cart. Every later commit must reach CartChanged.
func NewHub(cart domain.Cart, log logrus.FieldLogger) *Hub {
	return &Hub{
		latest:  cart.Clone(),
		log:     log,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBufSize)}

	// registering and queueing the current cart under one lock means no
	// commit can slip between them
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if data, err := json.Marshal(cartEvent(h.latest)); err == nil {
		c.send <- data
	}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) CartChanged(ctx context.Context, cart domain.Cart) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = cart.Clone()
	h.broadcastLocked(cartEvent(cart))
}

// Publish sends n unchanged, so clients see the ID the feed assigned.
func (h *Hub) Publish(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(Event{Type: "notification", Notification: &n})
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) broadcastLocked(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("marshal websocket event")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("websocket client too slow, dropping")
			h.dropLocked(c)
		}
	}
}

func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(c)
		h.mu.Unlock()
	}()
	for {
		// clients only listen; reads detect disconnects
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func cartEvent(cart domain.Cart) Event {
	resp := newCartResponse(cart)
	return Event{Type: "cart", Cart: &resp}
}

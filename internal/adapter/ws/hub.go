package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	pingPeriod = 30 * time.Second
	pongWait   = 90 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Heartbeat frames are JSON so browser clients can answer them without
// access to protocol-level ping frames.
var pingMessage = []byte(`{"type":"ping"}`)

type heartbeat struct {
	Type string `json:"type"`
}

// Hub fans firewall events out to every connected dashboard. A single
// goroutine owns the client set; each client has a dedicated write pump
// so one slow consumer cannot stall the rest.
type Hub struct {
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	count      chan chan int
	pingPeriod time.Duration
	pongWait   time.Duration
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		count:      make(chan chan int),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
			}
			h.clients = make(map[*client]struct{})
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("websocket client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("websocket client disconnected", "clients", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Drop the client rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Publish broadcasts one event to every connected client.
func (h *Hub) Publish(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal failed", "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("event broadcast buffer full, dropping event", "event_id", event.ID)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	h.count <- reply
	return <-reply
}

// ServeHTTP upgrades the connection and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump owns all reads. A {"type":"pong"} reply extends the read
// deadline; a connection silent past pongWait is closed as dead.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var hb heartbeat
		if err := json.Unmarshal(msg, &hb); err == nil && hb.Type == "pong" {
			c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
		}
	}
}

// writePump owns all writes, including the heartbeat pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pingMessage); err != nil {
				return
			}
		}
	}
}

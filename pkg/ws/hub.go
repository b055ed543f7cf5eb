// Package ws implements the real-time event broadcast transport: a
// websocket hub that fans events out to every connected client. Extensions
// holding the websocket permission receive the *Hub.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// EventMessage is the wire format for broadcast events.
type EventMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Seq       int64  `json:"seq"`
}

// Client is one connected websocket peer.
type Client struct {
	ID   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

// WriteMessage writes a raw websocket message, serializing concurrent writers.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub tracks connected clients and broadcasts events to all of them.
type Hub struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	seq     uint64

	onConnect    func(clientID string)
	onDisconnect func(clientID string)
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "ws-hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// OnConnect registers a callback fired after a client joins.
func (h *Hub) OnConnect(fn func(clientID string)) { h.onConnect = fn }

// OnDisconnect registers a callback fired after a client leaves.
func (h *Hub) OnDisconnect(fn func(clientID string)) { h.onDisconnect = fn }

// ServeHTTP upgrades the request and keeps the connection registered until
// the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to generate client id")
		_ = conn.Close()
		return
	}

	client := &Client{ID: id, conn: conn}

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()

	h.logger.Debug().Str("clientId", id).Msg("Client connected")
	if h.onConnect != nil {
		h.onConnect(id)
	}

	go h.readLoop(client)
}

func (h *Hub) readLoop(client *Client) {
	defer func() {
		h.remove(client.ID)
		_ = client.Close()
		if h.onDisconnect != nil {
			h.onDisconnect(client.ID)
		}
	}()

	for {
		// Inbound payloads are ignored; the hub is broadcast-only.
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.logger.Debug().Str("clientId", client.ID).Err(err).Msg("Client disconnected")
			return
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       int64(atomic.AddUint64(&h.seq, 1)),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", event).
				Msg("Failed to broadcast to client")
		}
	}
}

// CloseAll disconnects every client, typically during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		_ = client.Close()
		delete(h.clients, id)
	}
}

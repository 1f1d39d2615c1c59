// Package realtime pushes "conversation changed" signals to websocket subscribers.
package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/anonto42/classifieds/backend/internal/metrics"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames
	maxMessageSize = 512

	sendBuffer = 16
)

// EventMessageNew signals that a message was inserted into a conversation
const EventMessageNew = "message:new"

// Event tells subscribers that a conversation changed. It carries identifiers only; clients
// fetch the new rows themselves.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
}

// Sink receives events for local delivery
type Sink interface {
	Broadcast(ev Event)
}

// Client is one websocket subscribed to one conversation
type Client struct {
	hub            *Hub
	conversationID string
	conn           *websocket.Conn
	send           chan Event
	closeOnce      sync.Once
}

// Hub maps conversation IDs to their subscribed clients
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register subscribes conn to a conversation. Call Serve on the returned client.
func (h *Hub) Register(conversationID string, conn *websocket.Conn) *Client {
	c := &Client{
		hub:            h,
		conversationID: conversationID,
		conn:           conn,
		send:           make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	if h.clients[conversationID] == nil {
		h.clients[conversationID] = make(map[*Client]struct{})
	}
	h.clients[conversationID][c] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeClients.Inc()
	return c
}

// Unregister removes the client and stops its write pump. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.conversationID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			metrics.RealtimeClients.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.conversationID)
		}
	}
	h.mu.Unlock()

	c.closeOnce.Do(func() { close(c.send) })
}

// Broadcast queues ev for every client of its conversation. A client whose buffer is full
// misses the event.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[ev.ConversationID] {
		select {
		case c.send <- ev:
		default:
			log.Printf("realtime: dropping %s for slow client on %s", ev.Type, ev.ConversationID)
		}
	}
}

// ClientCount returns the number of subscribers of a conversation
func (h *Hub) ClientCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[conversationID])
}

// Serve runs the client until the peer disconnects, then unregisters it
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

// readPump only processes control frames; anything the peer sends is discarded
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

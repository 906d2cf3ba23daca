package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/handbow/internal/game"
	"github.com/ayusman/handbow/internal/geom"
)

// Live stream settings.
const (
	// SnapshotRate is how often connected clients receive a snapshot.
	SnapshotRate = time.Second / 30
	sendBuffer   = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxMessage   = 4096
)

// Message types on the live socket.
const (
	MsgHello    = "hello"
	MsgSnapshot = "snapshot"
	MsgEvent    = "event"
	MsgMouse    = "mouse"
	MsgReset    = "reset"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is a server to client message.
type Message struct {
	Type     string         `json:"type"`
	ClientID string         `json:"client_id,omitempty"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
	Event    *game.Event    `json:"event,omitempty"`
}

// Command is a client to server message.
type Command struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Down bool    `json:"down"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes snapshots and events to websocket clients and feeds their
// mouse and reset commands back into the game.
type Hub struct {
	game    Game
	mu      sync.RWMutex
	clients map[string]*client
	dropped atomic.Uint64
}

// NewHub creates a hub for g.
func NewHub(g Game) *Hub {
	return &Hub{
		game:    g,
		clients: make(map[string]*client),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	if hello, err := json.Marshal(Message{Type: MsgHello, ClientID: c.id}); err == nil {
		c.send <- hello
	}
	if snap, err := h.snapshotMessage(); err == nil {
		c.send <- snap
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump applies client commands until the connection fails.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket client %s: %v", c.id, err)
			}
			return
		}

		switch cmd.Type {
		case MsgMouse:
			h.game.SetMouse(geom.Vec2{X: cmd.X, Y: cmd.Y}, cmd.Down)
		case MsgReset:
			h.game.Reset()
		default:
			log.Printf("websocket client %s: unknown message type %q", c.id, cmd.Type)
		}
	}
}

// writePump owns all writes to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
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
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// Run broadcasts a snapshot at SnapshotRate until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(SnapshotRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}
		msg, err := h.snapshotMessage()
		if err != nil {
			log.Printf("Failed to encode snapshot: %v", err)
			continue
		}
		h.broadcast(msg)
	}
}

// Publish sends a game event to every client. It never blocks.
func (h *Hub) Publish(ev game.Event) {
	if h.Clients() == 0 {
		return
	}
	msg, err := json.Marshal(Message{Type: MsgEvent, Event: &ev})
	if err != nil {
		log.Printf("Failed to encode event: %v", err)
		return
	}
	h.broadcast(msg)
}

func (h *Hub) snapshotMessage() ([]byte, error) {
	snap := h.game.Snapshot()
	return json.Marshal(Message{Type: MsgSnapshot, Snapshot: &snap})
}

// broadcast queues msg for every client, dropping it for clients whose
// buffer is full.
func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

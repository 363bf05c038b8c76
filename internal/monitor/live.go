package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arcline-data/lidard/internal/scan"
)

const (
	// clientSendBuffer is the per-client outgoing queue. A client that
	// cannot keep up with rotation broadcasts is disconnected rather than
	// allowed to stall the hub.
	clientSendBuffer = 4

	writeWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The monitor binds to localhost/Tailscale; cross-origin pages on the
	// operator's browser are fine.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans completed rotations out to connected websocket clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	broadcast chan []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub. Run must be called before broadcasts flow.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]struct{}),
		broadcast: make(chan []byte, 16),
	}
}

// Run dispatches broadcasts until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// client is behind; cut it loose
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastRotation queues a completed rotation for delivery to all
// connected clients. Never blocks the caller.
func (h *Hub) BroadcastRotation(rot *scan.Rotation) {
	msg, err := json.Marshal(rot)
	if err != nil {
		log.Printf("live: failed to marshal rotation %s: %v", rot.ID, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// hub is saturated; this rotation is simply not streamed
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// handleLive upgrades the connection and streams rotation JSON until the
// client disconnects or falls behind.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live: websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
	s.hub.register(c)

	// Reader: we never expect client messages, but reading is required to
	// process control frames and detect disconnects.
	go func() {
		defer func() {
			s.hub.unregister(c)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer.
	go func() {
		defer conn.Close()
		for msg := range c.send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.hub.unregister(c)
				return
			}
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	}()
}

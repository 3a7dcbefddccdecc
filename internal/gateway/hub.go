package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"derivbot/internal/model"
)

// Command is an inbound control message from a UI client.
type Command struct {
	Type    string  `json:"type"` // start | stop | reset | switch_account | set_stake
	Account string  `json:"account,omitempty"`
	Stake   float64 `json:"stake,omitempty"`
}

// Hub fans bot updates out to connected WebSocket clients and routes their
// control commands back to the session. The latest update of each kind is
// cached so a freshly connected client gets a full snapshot immediately.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[model.UpdateKind][]byte

	// OnCommand receives parsed client commands. Nil drops them.
	OnCommand func(Command)
}

// NewHub creates a Hub. Origin checking is disabled: the bot binds to
// localhost and the UI is served from file:// or a dev server.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]bool),
		latest:  make(map[model.UpdateKind][]byte),
	}
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (h *Hub) Run(ctx context.Context, updates <-chan model.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.broadcast(u)
		}
	}
}

func (h *Hub) broadcast(u model.Update) {
	frame := u.JSON()

	h.mu.Lock()
	h.latest[u.Kind] = frame
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow client, skip this frame; the snapshot cache catches
			// it up if it recovers.
		}
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendSnapshot()
	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// snapshot returns the cached latest frame for each update kind.
func (h *Hub) snapshot() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([][]byte, 0, len(h.latest))
	for _, frame := range h.latest {
		out = append(out, frame)
	}
	return out
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

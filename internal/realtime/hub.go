package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub multiplexes pushes across every connected device/tab of a user.
// Each websocket connection runs its own read/write goroutines; the hub
// only tracks membership and fans out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // userID -> set of connections
	log     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.UserID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.log.Info("client_registered", "client_id", c.ID, "user_id", c.UserID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.UserID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.UserID)
			}
			h.log.Info("client_unregistered", "client_id", c.ID, "user_id", c.UserID)
		}
	}
}

// PushToUser delivers an event to every connection the user has open.
// A connection whose send buffer is full is skipped rather than blocking
// the push path.
func (h *Hub) PushToUser(userID, event string, data any) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.log.Error("push_marshal_failed", "event", event, "error", err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("push_dropped_slow_client", "client_id", c.ID, "user_id", userID, "event", event)
		}
	}
}

// ConnectionCount reports how many connections a user currently has.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// CloseAll disconnects every client, typically on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			c.conn.Close()
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

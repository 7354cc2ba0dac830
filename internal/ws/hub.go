package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub tracks every live connection on this process and the per-user groups
// they joined. Unlike the presence registry, a user may have several
// connections here.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	groups map[string]map[string]*Connection
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]*Connection),
		groups: make(map[string]map[string]*Connection),
		log:    log,
	}
}

// Add registers c and joins it to its user's group.
func (h *Hub) Add(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
	g := h.groups[c.UserID()]
	if g == nil {
		g = make(map[string]*Connection)
		h.groups[c.UserID()] = g
	}
	g[c.ID()] = c
}

func (h *Hub) Remove(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c.ID())
	if g, ok := h.groups[c.UserID()]; ok {
		delete(g, c.ID())
		if len(g) == 0 {
			delete(h.groups, c.UserID())
		}
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// EmitToUser sends an event to every connection in the user's group.
func (h *Hub) EmitToUser(userID, event string, data any) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.groups[userID]))
	for _, c := range h.groups[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.fanout(targets, event, data)
}

// BroadcastExcept sends an event to every connection but the one with exceptID.
func (h *Hub) BroadcastExcept(exceptID, event string, data any) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for id, c := range h.conns {
		if id != exceptID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.fanout(targets, event, data)
}

// CloseAll closes every connection; their sessions clean up on their own.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Hub) fanout(targets []*Connection, event string, data any) {
	if len(targets) == 0 {
		return
	}
	b, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		h.log.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.enqueue(b); err != nil {
			h.log.Debug("drop event",
				zap.String("event", event),
				zap.String("conn_id", c.ID()),
				zap.Error(err))
		}
	}
}

package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"stagetimer/internal/room"
)

// Hub is the process-wide connection index and the broadcast layer of the
// sync core. Its lock is independent of every room lock: join/leave here
// never blocks on an unrelated room's tick.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Client),
		rooms: make(map[string]map[string]*Client),
	}
}

// Register tracks a freshly upgraded connection. It belongs to no room until
// a join-room command succeeds.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()

	log.Debug().Str("connection_id", c.ID).Msg("connection registered")
}

// Unregister drops the connection from the index and from any room it is
// still listed in. Idempotent.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	for roomID, members := range h.rooms {
		if _, ok := members[c.ID]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	log.Debug().Str("connection_id", c.ID).Msg("connection unregistered")
}

func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[connID] = c
}

// CloseRoom drops the room's whole membership entry. The connections stay
// registered; they just no longer receive anything addressed to the room.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	delete(h.rooms, roomID)
	h.mu.Unlock()

	log.Debug().Str("room_id", roomID).Msg("room index cleared")
}

func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// ToRoom fans an event out to every connection joined to the room. The event
// is marshalled once, before returning, so callers may mutate state as soon
// as this returns. A connection whose send buffer is full is closed; its
// pumps clean up asynchronously.
func (h *Hub) ToRoom(roomID string, e room.Event) {
	data, err := marshalEvent(e)
	if err != nil {
		log.Error().Err(err).Str("event", e.Name).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			log.Warn().Str("connection_id", c.ID).Str("room_id", roomID).Msg("send buffer full, closing connection")
			c.close()
		}
	}
}

// ToConnection sends a targeted event to one connection only.
func (h *Hub) ToConnection(connID string, e room.Event) {
	data, err := marshalEvent(e)
	if err != nil {
		log.Error().Err(err).Str("event", e.Name).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if !c.trySend(data) {
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, closing connection")
		c.close()
	}
}

// Stats reports joined rooms and total registered connections.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.conns)
}

type wireEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func marshalEvent(e room.Event) ([]byte, error) {
	return json.Marshal(wireEvent{Event: e.Name, Data: e.Data})
}

package room

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/models"
)

// Room pairs a room's authoritative state with its serialization lock and
// the side-effect bookkeeping the service needs. All commands and ticks for
// one room run under mu; different rooms proceed in parallel.
type Room struct {
	mu    sync.Mutex
	state *models.RoomState

	// admin connections currently joined, keyed by connection id. Presence
	// for viewers lives in state.ConnectedClients.
	adminConns map[string]bool

	// flicker auto-revert; gen invalidates a scheduled revert when a newer
	// toggle supersedes it or the room is torn down.
	flickerTimer clockwork.Timer
	flickerGen   int
}

// dropPresence removes the connection's presence entry, whichever role it
// held. Callers hold rm.mu. Reports whether an entry was removed.
func (rm *Room) dropPresence(connID string) bool {
	if rm.adminConns[connID] {
		delete(rm.adminConns, connID)
		rm.state.AdminOnline = len(rm.adminConns) > 0
		return true
	}
	for i, c := range rm.state.ConnectedClients {
		if c.ConnectionID == connID {
			rm.state.ConnectedClients = append(rm.state.ConnectedClients[:i], rm.state.ConnectedClients[i+1:]...)
			rm.state.ClientCount = len(rm.state.ConnectedClients)
			return true
		}
	}
	return false
}

// Registry is the process-wide map of live rooms. Its lock only guards the
// map itself, never a room's critical section.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (r *Registry) Create(roomID, adminID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomExists)
	}
	rm := &Room{
		state:      models.NewRoomState(roomID, adminID),
		adminConns: make(map[string]bool),
	}
	r.rooms[roomID] = rm

	log.Debug().Str("room_id", roomID).Str("admin_id", adminID).Msg("room registered")
	return rm, nil
}

func (r *Registry) Get(roomID string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	return rm, nil
}

// Delete removes the room and cancels its pending flicker revert. Safe to
// call while connections still reference the room; their next command fails
// with NotFound.
func (r *Registry) Delete(roomID string) {
	r.mu.Lock()
	rm, exists := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if !exists {
		return
	}

	rm.mu.Lock()
	rm.flickerGen++
	if rm.flickerTimer != nil {
		rm.flickerTimer.Stop()
		rm.flickerTimer = nil
	}
	rm.mu.Unlock()

	log.Info().Str("room_id", roomID).Msg("room removed from registry")
}

// ForEach visits a snapshot of the live rooms. The callback runs without the
// registry lock held, so it may lock individual rooms.
func (r *Registry) ForEach(fn func(roomID string, rm *Room)) {
	r.mu.RLock()
	snapshot := make(map[string]*Room, len(r.rooms))
	for id, rm := range r.rooms {
		snapshot[id] = rm
	}
	r.mu.RUnlock()

	for id, rm := range snapshot {
		fn(id, rm)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

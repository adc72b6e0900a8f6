package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/models"
)

// flickerWindow is how long the flicker flag stays up before the scheduled
// revert clears it.
const flickerWindow = 5 * time.Second

// Broadcaster is the dissemination side of the sync core. Implementations
// must serialize an event's Data before returning, because the service emits
// while holding the room lock and mutates state right after.
type Broadcaster interface {
	// JoinRoom and LeaveRoom maintain the connection -> room index.
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
	// CloseRoom drops the whole room from the index when it is torn down.
	CloseRoom(roomID string)
	// ToRoom fans an event out to every connection joined to the room.
	ToRoom(roomID string, e Event)
	// ToConnection sends a targeted event to a single connection.
	ToConnection(connID string, e Event)
}

// Service applies commands to rooms under per-room serialization and pushes
// the resulting events through the broadcaster. It is the only writer of
// room state.
type Service struct {
	registry *Registry
	bc       Broadcaster
	clock    clockwork.Clock
}

func NewService(registry *Registry, bc Broadcaster, clock clockwork.Clock) *Service {
	return &Service{registry: registry, bc: bc, clock: clock}
}

// CreateRoom seeds an empty room. The roomID comes from the allocation
// layer; the core never generates room ids.
func (s *Service) CreateRoom(roomID, adminID string) error {
	_, err := s.registry.Create(roomID, adminID)
	return err
}

// CloseRoom tears the room down and clears the broadcaster's index for it,
// so members of a deleted room are not left subscribed to a dead entry.
// Connections still referencing the room receive NotFound on their next
// command and are forced to leave by the transport layer.
func (s *Service) CloseRoom(roomID string) {
	s.registry.Delete(roomID)
	s.bc.CloseRoom(roomID)
}

// RoomExists reports whether the registry still holds the room.
func (s *Service) RoomExists(roomID string) bool {
	_, err := s.registry.Get(roomID)
	return err == nil
}

// Join registers a connection with a room. Admin joins require the caller's
// identity to match the room's admin. The joining connection receives a full
// snapshot; everyone already in the room gets a presence broadcast first.
func (s *Service) Join(connID, roomID string, role models.Role, userID, displayName string) error {
	rm, err := s.registry.Get(roomID)
	if err != nil {
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if role == models.RoleAdmin && (userID == "" || userID != rm.state.AdminID) {
		return fmt.Errorf("connection %s is not the room admin: %w", connID, ErrForbidden)
	}

	// A repeat join is a valid way to request a fresh snapshot. Any existing
	// presence entry for the connection is replaced, never duplicated.
	rm.dropPresence(connID)

	if role == models.RoleAdmin {
		rm.adminConns[connID] = true
		rm.state.AdminOnline = true
	} else {
		rm.state.ConnectedClients = append(rm.state.ConnectedClients, models.ConnectedClient{
			ConnectionID: connID,
			DisplayName:  displayName,
		})
		rm.state.ClientCount = len(rm.state.ConnectedClients)
	}

	// Presence goes out before the joiner is indexed, so it reaches every
	// *other* connection; the joiner then gets its targeted snapshot.
	s.bc.ToRoom(roomID, snapshotEvent(rm.state))
	s.bc.JoinRoom(connID, roomID)
	s.bc.ToConnection(connID, snapshotEvent(rm.state))

	log.Info().Str("room_id", roomID).Str("connection_id", connID).Str("role", string(role)).Msg("connection joined room")
	return nil
}

// Leave is idempotent: it runs on explicit leave, disconnect and error paths
// and a second call is a no-op. It never fails, even if the room is already
// gone.
func (s *Service) Leave(connID, roomID string) {
	s.bc.LeaveRoom(connID, roomID)

	rm, err := s.registry.Get(roomID)
	if err != nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.dropPresence(connID) {
		return
	}

	s.bc.ToRoom(roomID, snapshotEvent(rm.state))
	log.Info().Str("room_id", roomID).Str("connection_id", connID).Msg("connection left room")
}

// mutate runs one admin command inside the room's critical section and
// broadcasts its events in application order. Failures produce no state
// change and no broadcast.
func (s *Service) mutate(roomID string, role models.Role, apply func(rm *Room) ([]Event, error)) error {
	// Existence before authorization: a command against a torn-down room
	// reports NotFound whatever the caller's role, so the transport layer can
	// evict the stale membership.
	rm, err := s.registry.Get(roomID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return fmt.Errorf("admin command from %s role: %w", role, ErrForbidden)
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	events, err := apply(rm)
	if err != nil {
		return err
	}
	for _, e := range events {
		s.bc.ToRoom(roomID, e)
	}
	return nil
}

func (s *Service) AddTimer(roomID string, role models.Role, name string, duration int, markers []int) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyAddTimer(rm.state, uuid.New().String(), name, duration, markers)
	})
}

func (s *Service) StartTimer(roomID string, role models.Role, timerID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyStartTimer(rm.state, timerID)
	})
}

func (s *Service) PauseTimer(roomID string, role models.Role, timerID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyPauseTimer(rm.state, timerID)
	})
}

func (s *Service) ResetTimer(roomID string, role models.Role, timerID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyResetTimer(rm.state, timerID)
	})
}

func (s *Service) RestartTimer(roomID string, role models.Role, timerID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyRestartTimer(rm.state, timerID)
	})
}

func (s *Service) DeleteTimer(roomID string, role models.Role, timerID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyDeleteTimer(rm.state, timerID)
	})
}

func (s *Service) SetTimerTime(roomID string, role models.Role, timerID string, newTime int) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applySetTimerTime(rm.state, timerID, newTime)
	})
}

// ToggleFlicker sets the flag and, when raising it, schedules the revert.
// A second toggle within the window supersedes the pending revert rather
// than stacking another one.
func (s *Service) ToggleFlicker(roomID string, role models.Role, flickering bool) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		rm.flickerGen++
		gen := rm.flickerGen
		if rm.flickerTimer != nil {
			rm.flickerTimer.Stop()
			rm.flickerTimer = nil
		}

		rm.state.Flickering = flickering
		if flickering {
			rm.flickerTimer = s.clock.AfterFunc(flickerWindow, func() {
				s.revertFlicker(roomID, rm, gen)
			})
		}
		return []Event{snapshotEvent(rm.state)}, nil
	})
}

// revertFlicker clears the flag five seconds after the toggle that armed it,
// unless a newer toggle or room teardown invalidated the generation.
func (s *Service) revertFlicker(roomID string, rm *Room, gen int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.flickerGen != gen {
		return
	}
	rm.flickerTimer = nil
	rm.state.Flickering = false
	s.bc.ToRoom(roomID, snapshotEvent(rm.state))
	log.Debug().Str("room_id", roomID).Msg("flicker auto-reverted")
}

func (s *Service) CreateMessage(roomID string, role models.Role) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyCreateMessage(rm.state, uuid.New().String())
	})
}

func (s *Service) UpdateMessage(roomID string, role models.Role, messageID, text string, styles models.MessageStyles) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyUpdateMessage(rm.state, messageID, text, styles)
	})
}

func (s *Service) ToggleActive(roomID string, role models.Role, messageID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyToggleActive(rm.state, messageID)
	})
}

func (s *Service) DeleteMessage(roomID string, role models.Role, messageID string) error {
	return s.mutate(roomID, role, func(rm *Room) ([]Event, error) {
		return applyDeleteMessage(rm.state, messageID)
	})
}

// tickAll advances every room by one second. Each room's tick takes the same
// lock as its commands, so a tick never races a scrub or pause.
func (s *Service) tickAll() {
	s.registry.ForEach(func(roomID string, rm *Room) {
		rm.mu.Lock()
		events := tickTimers(rm.state)
		for _, e := range events {
			s.bc.ToRoom(roomID, e)
		}
		rm.mu.Unlock()
	})
}

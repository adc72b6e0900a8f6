package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/database"
	"stagetimer/internal/models"
	"stagetimer/internal/room"
)

// RoomService is the room allocation layer: it generates room ids, keeps the
// persistent room records and seeds the in-memory registry the sync core
// works on.
type RoomService struct {
	db   database.Database
	core *room.Service
}

func NewRoomService(db database.Database, core *room.Service) *RoomService {
	return &RoomService{db: db, core: core}
}

// CreateRoom allocates a fresh room id, persists the record and registers
// the empty live state.
func (s *RoomService) CreateRoom(ctx context.Context, adminID string) (*models.Room, error) {
	roomID := uuid.New().String()

	rec, err := s.db.CreateRoom(ctx, roomID, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist room: %w", err)
	}

	if err := s.core.CreateRoom(roomID, adminID); err != nil {
		// Undo the record so a later create can reuse nothing stale.
		if delErr := s.db.DeleteRoom(ctx, roomID); delErr != nil {
			log.Error().Err(delErr).Str("room_id", roomID).Msg("failed to clean up room record")
		}
		return nil, err
	}

	log.Info().Str("room_id", roomID).Str("admin_id", adminID).Msg("room created")
	return rec, nil
}

func (s *RoomService) ListRooms(ctx context.Context, adminID string) ([]*models.Room, error) {
	return s.db.ListRoomsByAdmin(ctx, adminID)
}

// DeleteRoom tears a room down for good: live state first, then the record.
// Only the room's admin may do this.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, adminID string) error {
	rec, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("room %s: %w", roomID, room.ErrNotFound)
	}
	if rec.AdminID != adminID {
		return fmt.Errorf("user %s is not the room admin: %w", adminID, room.ErrForbidden)
	}

	s.core.CloseRoom(roomID)
	if err := s.db.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("failed to delete room record: %w", err)
	}

	log.Info().Str("room_id", roomID).Msg("room deleted")
	return nil
}

// RestoreRooms seeds the registry from the persisted records so admins can
// rejoin their rooms after a restart.
func (s *RoomService) RestoreRooms(ctx context.Context) error {
	rooms, err := s.db.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	for _, rec := range rooms {
		if err := s.core.CreateRoom(rec.ID, rec.AdminID); err != nil {
			log.Error().Err(err).Str("room_id", rec.ID).Msg("failed to restore room")
		}
	}

	log.Info().Int("count", len(rooms)).Msg("rooms restored into registry")
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"stagetimer/internal/auth"
	"stagetimer/internal/models"
	"stagetimer/internal/room"
	"stagetimer/internal/services"
)

type RoomHandlers struct {
	roomService *services.RoomService
	authService *auth.Service
}

func NewRoomHandlers(roomService *services.RoomService, authService *auth.Service) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		authService: authService,
	}
}

// CreateRoom allocates a room owned by the authenticated user. The request
// body is ignored; identity comes from the bearer token.
func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := h.userFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rec, err := h.roomService.CreateRoom(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("admin_id", user.ID).Msg("room creation failed")
		http.Error(w, "failed to create room", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.CreateRoomResponse{RoomID: rec.ID})
}

func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	user, err := h.userFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rooms, err := h.roomService.ListRooms(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("admin_id", user.ID).Msg("room listing failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if rooms == nil {
		rooms = []*models.Room{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

func (h *RoomHandlers) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	user, err := h.userFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := r.PathValue("id")
	if roomID == "" {
		http.Error(w, "invalid room ID", http.StatusBadRequest)
		return
	}

	if err := h.roomService.DeleteRoom(r.Context(), roomID, user.ID); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("room deletion failed")
		switch {
		case errors.Is(err, room.ErrNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
		case errors.Is(err, room.ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("room deleted successfully"))
}

func (h *RoomHandlers) userFromRequest(r *http.Request) (*models.User, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}
	return h.authService.GetUserFromToken(r.Context(), token)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/auth"
	"stagetimer/internal/room"
	ws "stagetimer/internal/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	core        *room.Service
	registry    *room.Registry
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub, core *room.Service, registry *room.Registry) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		core:        core,
		registry:    registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket upgrades the connection. A token is optional: viewers may
// connect anonymously, but without one the connection can never join as
// admin.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = user.ID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, h.core, conn, userID)
	h.hub.Register(client)
	client.Start()

	log.Info().Str("connection_id", client.ID).Str("user_id", userID).Msg("websocket connection established")
}

// Health is a liveness probe.
func (h *WebSocketHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Stats reports live room and connection counts.
func (h *WebSocketHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	joinedRooms, clients := h.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"rooms":        h.registry.Len(),
		"joined_rooms": joinedRooms,
		"connections":  clients,
	})
}

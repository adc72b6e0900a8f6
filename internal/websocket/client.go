package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"stagetimer/internal/models"
	"stagetimer/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. Role and room membership are assigned
// when its join-room command succeeds; until then every room command fails.
type Client struct {
	ID          string
	userID      string
	roomID      string
	role        models.Role
	displayName string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	hub *Hub
	svc *room.Service
}

// NewClient wraps an upgraded connection. userID is empty for anonymous
// viewers; admins must have authenticated before upgrading.
func NewClient(hub *Hub, svc *room.Service, conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		hub:    hub,
		svc:    svc,
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// trySend queues data for the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the connection down once; pumps exit on their own.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		if c.roomID != "" {
			c.svc.Leave(c.ID, c.roomID)
		}
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("websocket read error")
			}
			return
		}
		c.dispatch(data)
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame to the sync core. Every failure becomes
// a targeted error event; nothing here can take the room down.
func (c *Client) dispatch(data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("invalid frame")
		c.sendError("ValidationError")
		return
	}

	if env.Event == models.EventJoinRoom {
		c.handleJoin(env.Data)
		return
	}

	var err error
	switch env.Event {
	case models.EventAddTimer:
		var p models.AddTimerPayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.AddTimer(p.RoomID, c.role, p.Name, p.Duration, p.Markers)
			})
		}
	case models.EventStartTimer, models.EventPauseTimer, models.EventResetTimer,
		models.EventRestartTimer, models.EventDeleteTimer:
		var p models.TimerRefPayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.timerCommand(env.Event, p)
			})
		}
	case models.EventSetTimerTime:
		var p models.SetTimerTimePayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.SetTimerTime(p.RoomID, c.role, p.TimerID, p.NewTime)
			})
		}
	case models.EventToggleFlicker:
		var p models.ToggleFlickerPayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.ToggleFlicker(p.RoomID, c.role, p.Flickering)
			})
		}
	case models.EventCreateMessage:
		var p models.CreateMessagePayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.CreateMessage(p.RoomID, c.role)
			})
		}
	case models.EventUpdateMessage:
		var p models.UpdateMessagePayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.UpdateMessage(p.RoomID, c.role, p.MessageID, p.Text, p.Styles)
			})
		}
	case models.EventToggleActive:
		var p models.MessageRefPayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.ToggleActive(p.RoomID, c.role, p.MessageID)
			})
		}
	case models.EventDeleteMessage:
		var p models.MessageRefPayload
		if err = c.decode(env.Data, &p); err == nil {
			err = c.inRoom(p.RoomID, func() error {
				return c.svc.DeleteMessage(p.RoomID, c.role, p.MessageID)
			})
		}
	default:
		log.Warn().Str("connection_id", c.ID).Str("event", env.Event).Msg("unknown event")
		c.sendError("ValidationError")
		return
	}

	if err != nil {
		c.handleCommandError(err)
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var p models.JoinRoomPayload
	if err := c.decode(data, &p); err != nil {
		c.sendError("ValidationError")
		return
	}

	// A connection belongs to one room at a time; rejoining elsewhere
	// leaves the old room first.
	if c.roomID != "" && c.roomID != p.RoomID {
		c.svc.Leave(c.ID, c.roomID)
		c.roomID = ""
	}

	role := models.ParseRole(p.Role)
	if err := c.svc.Join(c.ID, p.RoomID, role, c.userID, p.DisplayName); err != nil {
		c.sendError(room.ErrorMessage(err))
		return
	}
	c.roomID = p.RoomID
	c.role = role
	c.displayName = p.DisplayName
}

func (c *Client) timerCommand(event string, p models.TimerRefPayload) error {
	switch event {
	case models.EventStartTimer:
		return c.svc.StartTimer(p.RoomID, c.role, p.TimerID)
	case models.EventPauseTimer:
		return c.svc.PauseTimer(p.RoomID, c.role, p.TimerID)
	case models.EventResetTimer:
		return c.svc.ResetTimer(p.RoomID, c.role, p.TimerID)
	case models.EventRestartTimer:
		return c.svc.RestartTimer(p.RoomID, c.role, p.TimerID)
	default:
		return c.svc.DeleteTimer(p.RoomID, c.role, p.TimerID)
	}
}

// inRoom gates a command on the connection actually being joined to the room
// it targets.
func (c *Client) inRoom(roomID string, fn func() error) error {
	if c.roomID == "" || c.roomID != roomID {
		return room.ErrForbidden
	}
	return fn()
}

func (c *Client) decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return room.ErrValidation
	}
	return nil
}

// handleCommandError sends the targeted error reply. If the room itself is
// gone the connection is forced out of it.
func (c *Client) handleCommandError(err error) {
	c.sendError(room.ErrorMessage(err))

	if errors.Is(err, room.ErrNotFound) && c.roomID != "" && !c.svc.RoomExists(c.roomID) {
		c.svc.Leave(c.ID, c.roomID)
		c.roomID = ""
		c.role = ""
	}
}

func (c *Client) sendError(message string) {
	data, err := marshalEvent(room.Event{Name: models.EventError, Data: models.ErrorPayload{Message: message}})
	if err != nil {
		return
	}
	if !c.trySend(data) {
		c.close()
	}
}

package models

import "encoding/json"

// Event names carried on the wire. Field names inside payloads are the
// contract surface the frontends rely on.
const (
	// inbound (client -> server)
	EventJoinRoom      = "join-room"
	EventAddTimer      = "add-timer"
	EventStartTimer    = "start-timer"
	EventPauseTimer    = "pause-timer"
	EventResetTimer    = "reset-timer"
	EventRestartTimer  = "restart-timer"
	EventDeleteTimer   = "delete-timer"
	EventSetTimerTime  = "set-timer-time"
	EventToggleFlicker = "toggle-flicker"
	EventCreateMessage = "create-message"
	EventUpdateMessage = "update-message"
	EventToggleActive  = "toggle-active"
	EventDeleteMessage = "delete-message"

	// outbound (server -> client)
	EventRoomState            = "room-state"
	EventTimerAdded           = "timer-added"
	EventTimerTick            = "timer-tick"
	EventTimerEnded           = "timer-ended"
	EventTimerDeleted         = "timer-deleted"
	EventMessageUpdated       = "message-updated"
	EventActiveMessageUpdated = "active-message-updated"
	EventError                = "error"
)

// Envelope is the inbound wire frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads.

type JoinRoomPayload struct {
	RoomID      string `json:"roomId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
}

type AddTimerPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Markers  []int  `json:"markers,omitempty"`
}

// TimerRefPayload covers start/pause/reset/restart/delete, which only name a
// timer.
type TimerRefPayload struct {
	RoomID  string `json:"roomId"`
	TimerID string `json:"timerId"`
}

type SetTimerTimePayload struct {
	RoomID  string `json:"roomId"`
	TimerID string `json:"timerId"`
	NewTime int    `json:"newTime"`
}

type ToggleFlickerPayload struct {
	RoomID     string `json:"roomId"`
	Flickering bool   `json:"flickering"`
}

type CreateMessagePayload struct {
	RoomID string `json:"roomId"`
}

type UpdateMessagePayload struct {
	RoomID    string        `json:"roomId"`
	MessageID string        `json:"messageId"`
	Text      string        `json:"text"`
	Styles    MessageStyles `json:"styles"`
}

type MessageRefPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// Outbound payloads.

type RoomStatePayload struct {
	RoomState *RoomState `json:"roomState"`
}

type TimerAddedPayload struct {
	Timer *Timer `json:"timer"`
}

type TimerTickPayload struct {
	TimerID   string `json:"timerId"`
	Remaining int    `json:"remaining"`
}

type TimerEndedPayload struct {
	TimerID string `json:"timerId"`
}

type TimerDeletedPayload struct {
	TimerID string `json:"timerId"`
}

type MessagesUpdatedPayload struct {
	Messages []*DisplayMessage `json:"messages"`
}

type ActiveMessageUpdatedPayload struct {
	ActiveMessageID *string           `json:"activeMessageId"`
	Messages        []*DisplayMessage `json:"messages"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

package models

import "time"

// Role of a connection inside a room.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// ParseRole maps a wire role string to a Role. Anything that is not the
// admin role is treated as a viewer, which also covers the legacy "client"
// value older frontends send.
func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleViewer
}

// Timer is a single countdown inside a room. Duration is the immutable reset
// target; Remaining is what ticks down while IsRunning.
type Timer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Duration  int    `json:"duration"`
	Remaining int    `json:"remaining"`
	IsRunning bool   `json:"isRunning"`
	Markers   []int  `json:"markers,omitempty"`
}

// MessageStyles holds the display styling of a message.
type MessageStyles struct {
	Color string `json:"color"`
	Bold  bool   `json:"bold"`
}

// DisplayMessage is an on-screen message. At most one message per room has
// Active set.
type DisplayMessage struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Styles MessageStyles `json:"styles"`
	Active bool          `json:"active"`
}

// ConnectedClient is a presence entry for a non-admin connection.
type ConnectedClient struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName,omitempty"`
}

// RoomState is the authoritative per-room state. Timers and messages keep
// insertion order so snapshots serialize deterministically.
type RoomState struct {
	RoomID           string            `json:"roomId"`
	AdminID          string            `json:"adminId"`
	AdminOnline      bool              `json:"adminOnline"`
	ClientCount      int               `json:"clientCount"`
	ConnectedClients []ConnectedClient `json:"connectedClients"`
	Timers           []*Timer          `json:"timers"`
	Messages         []*DisplayMessage `json:"messages"`
	ActiveMessageID  *string           `json:"activeMessageId"`
	Flickering       bool              `json:"flickering"`
}

// NewRoomState returns the empty state a freshly allocated room starts with.
func NewRoomState(roomID, adminID string) *RoomState {
	return &RoomState{
		RoomID:           roomID,
		AdminID:          adminID,
		ConnectedClients: []ConnectedClient{},
		Timers:           []*Timer{},
		Messages:         []*DisplayMessage{},
	}
}

// Room is the persisted room record; live state lives in the registry.
type Room struct {
	ID        string    `json:"roomId"`
	AdminID   string    `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is a registered account. Its ID is the opaque identity the sync core
// compares against a room's admin id.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

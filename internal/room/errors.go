package room

import "errors"

// Command failure taxonomy. Handlers at the transport boundary convert these
// to a targeted error event; they never terminate the room.
var (
	ErrRoomExists   = errors.New("room already exists")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")
)

// ErrorMessage maps a command failure to the canonical wire message for the
// error event. Unrecognized errors collapse to a generic message so internal
// details never reach clients.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "internal error"
	}
}

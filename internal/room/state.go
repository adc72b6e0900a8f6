package room

import (
	"fmt"

	"stagetimer/internal/models"
)

// Event is an outbound event produced by a state transition. The broadcast
// layer decides the fan-out; transitions only say what happened.
type Event struct {
	Name string
	Data any
}

// defaultMessageColor is what a freshly created display message renders in.
const defaultMessageColor = "#FFFFFF"

// The apply* functions below are the pure command transitions of the room
// state machine: (state, payload) -> events or a typed error. Callers hold
// the room lock; nothing here does I/O.

func findTimer(s *models.RoomState, id string) (*models.Timer, bool) {
	for _, t := range s.Timers {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func findMessage(s *models.RoomState, id string) (*models.DisplayMessage, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

func applyAddTimer(s *models.RoomState, id, name string, duration int, markers []int) ([]Event, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive: %w", ErrValidation)
	}
	t := &models.Timer{
		ID:        id,
		Name:      name,
		Duration:  duration,
		Remaining: duration,
		Markers:   markers,
	}
	s.Timers = append(s.Timers, t)
	return []Event{{Name: models.EventTimerAdded, Data: models.TimerAddedPayload{Timer: t}}}, nil
}

func applyStartTimer(s *models.RoomState, id string) ([]Event, error) {
	t, ok := findTimer(s, id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, ErrNotFound)
	}
	if t.Remaining == 0 {
		return nil, fmt.Errorf("timer %s has no time remaining: %w", id, ErrInvalidState)
	}
	t.IsRunning = true
	return []Event{snapshotEvent(s)}, nil
}

func applyPauseTimer(s *models.RoomState, id string) ([]Event, error) {
	t, ok := findTimer(s, id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, ErrNotFound)
	}
	t.IsRunning = false
	return []Event{snapshotEvent(s)}, nil
}

func applyResetTimer(s *models.RoomState, id string) ([]Event, error) {
	t, ok := findTimer(s, id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, ErrNotFound)
	}
	t.Remaining = t.Duration
	t.IsRunning = false
	return []Event{snapshotEvent(s)}, nil
}

func applyRestartTimer(s *models.RoomState, id string) ([]Event, error) {
	t, ok := findTimer(s, id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, ErrNotFound)
	}
	t.Remaining = t.Duration
	t.IsRunning = true
	return []Event{snapshotEvent(s)}, nil
}

// applyDeleteTimer is idempotent: deleting an absent timer produces no error
// and no events.
func applyDeleteTimer(s *models.RoomState, id string) ([]Event, error) {
	for i, t := range s.Timers {
		if t.ID == id {
			s.Timers = append(s.Timers[:i], s.Timers[i+1:]...)
			return []Event{{Name: models.EventTimerDeleted, Data: models.TimerDeletedPayload{TimerID: id}}}, nil
		}
	}
	return nil, nil
}

// applySetTimerTime scrubs remaining to a clamped value without touching
// IsRunning. Last writer wins against a concurrent tick.
func applySetTimerTime(s *models.RoomState, id string, newTime int) ([]Event, error) {
	t, ok := findTimer(s, id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, ErrNotFound)
	}
	if newTime < 0 {
		newTime = 0
	}
	if newTime > t.Duration {
		newTime = t.Duration
	}
	t.Remaining = newTime
	return []Event{{Name: models.EventTimerTick, Data: models.TimerTickPayload{TimerID: id, Remaining: newTime}}}, nil
}

// tickTimers advances every running timer by one second. A room with no
// running timers yields no events.
func tickTimers(s *models.RoomState) []Event {
	var events []Event
	for _, t := range s.Timers {
		if !t.IsRunning {
			continue
		}
		t.Remaining--
		if t.Remaining <= 0 {
			t.Remaining = 0
			t.IsRunning = false
			events = append(events, Event{Name: models.EventTimerEnded, Data: models.TimerEndedPayload{TimerID: t.ID}})
			continue
		}
		events = append(events, Event{Name: models.EventTimerTick, Data: models.TimerTickPayload{TimerID: t.ID, Remaining: t.Remaining}})
	}
	return events
}

func applyCreateMessage(s *models.RoomState, id string) ([]Event, error) {
	m := &models.DisplayMessage{
		ID:     id,
		Styles: models.MessageStyles{Color: defaultMessageColor},
	}
	s.Messages = append(s.Messages, m)
	return []Event{{Name: models.EventMessageUpdated, Data: models.MessagesUpdatedPayload{Messages: s.Messages}}}, nil
}

func applyUpdateMessage(s *models.RoomState, id, text string, styles models.MessageStyles) ([]Event, error) {
	m, ok := findMessage(s, id)
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	m.Text = text
	m.Styles = styles
	return []Event{{Name: models.EventMessageUpdated, Data: models.MessagesUpdatedPayload{Messages: s.Messages}}}, nil
}

// applyToggleActive flips the target message. Activating one deactivates any
// other in the same transition, so at most one message is ever active.
func applyToggleActive(s *models.RoomState, id string) ([]Event, error) {
	target, ok := findMessage(s, id)
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if target.Active {
		target.Active = false
		s.ActiveMessageID = nil
	} else {
		for _, m := range s.Messages {
			m.Active = false
		}
		target.Active = true
		msgID := target.ID
		s.ActiveMessageID = &msgID
	}
	return []Event{{
		Name: models.EventActiveMessageUpdated,
		Data: models.ActiveMessageUpdatedPayload{ActiveMessageID: s.ActiveMessageID, Messages: s.Messages},
	}}, nil
}

// applyDeleteMessage is idempotent like timer deletion. Removing the active
// message clears ActiveMessageID.
func applyDeleteMessage(s *models.RoomState, id string) ([]Event, error) {
	for i, m := range s.Messages {
		if m.ID != id {
			continue
		}
		s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
		if m.Active {
			s.ActiveMessageID = nil
			return []Event{{
				Name: models.EventActiveMessageUpdated,
				Data: models.ActiveMessageUpdatedPayload{ActiveMessageID: nil, Messages: s.Messages},
			}}, nil
		}
		return []Event{{Name: models.EventMessageUpdated, Data: models.MessagesUpdatedPayload{Messages: s.Messages}}}, nil
	}
	return nil, nil
}

func snapshotEvent(s *models.RoomState) Event {
	return Event{Name: models.EventRoomState, Data: models.RoomStatePayload{RoomState: s}}
}

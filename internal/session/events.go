package session

import (
	"time"

	"github.com/google/uuid"
)

// Domain event names emitted by the orchestrator.
const (
	EventRoomCreated        = "room.created"
	EventRoomClosed         = "room.closed"
	EventRecordingStarted   = "recording.started"
	EventRecordingStopped   = "recording.stopped"
	EventRecordingCompleted = "recording.completed"
	EventRecordingFailed    = "recording.failed"
	EventGuestInvited       = "guest.invited"
	EventUserLeft           = "user.left"
	EventUserKicked         = "user.kicked"
)

// Event priorities.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Event is a domain event published after a committed transition.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	Priority   string                 `json:"priority"`
	RoomID     uuid.UUID              `json:"room_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

func (s *Service) newEvent(name string, roomID uuid.UUID, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Name:       name,
		Priority:   PriorityNormal,
		RoomID:     roomID,
		OccurredAt: s.now(),
		Payload:    payload,
	}
}

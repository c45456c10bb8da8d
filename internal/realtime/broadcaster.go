package realtime

import (
	"github.com/google/uuid"

	"github.com/echoroom/backend/internal/models"
)

// Broadcaster pushes room lifecycle events to connected websocket clients.
// It satisfies the orchestrator's notification port.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) RecordingStarted(roomID, recordingID uuid.UUID) {
	b.hub.BroadcastToRoomAndPublish(roomID, "recording_started", map[string]string{
		"recording_id": recordingID.String(),
	})
}

func (b *Broadcaster) RecordingStopped(roomID, recordingID uuid.UUID) {
	b.hub.BroadcastToRoomAndPublish(roomID, "recording_stopped", map[string]string{
		"recording_id": recordingID.String(),
	})
}

func (b *Broadcaster) RoomStatus(roomID uuid.UUID, status models.RoomStatus) {
	b.hub.BroadcastToRoomAndPublish(roomID, "room_status", map[string]string{
		"status": string(status),
	})
}

func (b *Broadcaster) GuestChanged(roomID, guestID uuid.UUID, change string) {
	b.hub.BroadcastToRoomAndPublish(roomID, "guest_changed", map[string]string{
		"guest_id": guestID.String(),
		"change":   change,
	})
}

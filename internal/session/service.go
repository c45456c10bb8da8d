// Package session implements the cross-entity orchestrator for the room,
// recording and guest-access lifecycles. Each procedure sequences permission
// checks, state policy, aggregate mutations through persistence ports and
// best-effort side effects, compensating already-committed steps when a later
// step fails.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/pkg/apperr"
)

// Deps are the ports consumed by the orchestrator.
type Deps struct {
	Rooms      RoomStore
	Recordings RecordingStore
	Guests     GuestStore
	Users      UserStore
	Storage    FolderStorage
	Tokens     TokenService
	Events     EventPublisher
	Broadcast  Broadcaster
	Logger     *zap.Logger

	// InviteBaseURL prefixes guest join links, e.g. https://app.example.com.
	InviteBaseURL string
}

// Service is the session orchestrator.
type Service struct {
	rooms         RoomStore
	recordings    RecordingStore
	guests        GuestStore
	users         UserStore
	storage       FolderStorage
	tokens        TokenService
	events        EventPublisher
	broadcast     Broadcaster
	logger        *zap.Logger
	inviteBaseURL string
	now           func() time.Time
}

// NewService creates the orchestrator.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rooms:         d.Rooms,
		recordings:    d.Recordings,
		guests:        d.Guests,
		users:         d.Users,
		storage:       d.Storage,
		tokens:        d.Tokens,
		events:        d.Events,
		broadcast:     d.Broadcast,
		logger:        logger,
		inviteBaseURL: d.InviteBaseURL,
		now:           time.Now,
	}
}

// requireActiveActor loads the acting user and checks it is active.
func (s *Service) requireActiveActor(ctx context.Context, actorID uuid.UUID) (*models.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.E(apperr.KindNotFound, "actor not found")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "load actor")
	}
	if !actor.IsActive {
		return nil, apperr.E(apperr.KindPermissionDenied, "actor is inactive")
	}
	return actor, nil
}

// requireRoomManager checks the actor is the room's host or an admin and
// returns both. Used by every procedure that mutates room-scoped state.
func (s *Service) requireRoomManager(ctx context.Context, actorID, roomID uuid.UUID) (*models.User, *models.Room, error) {
	actor, err := s.requireActiveActor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleAdmin && room.HostID != actor.ID {
		return nil, nil, apperr.E(apperr.KindPermissionDenied, "only the room host or an admin may do this")
	}
	return actor, room, nil
}

func (s *Service) getRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.E(apperr.KindNotFound, "room not found")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "load room")
	}
	return room, nil
}

// publish sends a domain event, swallowing failures.
func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event", e.Name),
			zap.String("room_id", e.RoomID.String()),
			zap.Error(err),
		)
	}
}

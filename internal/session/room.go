package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/pkg/apperr"
)

// CreateRoomInput is the command for CreateRoom.
type CreateRoomInput struct {
	HostID          uuid.UUID
	Name            string
	Slug            string
	MaxParticipants int
	AllowVideo      bool
}

// CreateRoom validates the host, resolves name and slug, enforces the open
// rooms ceiling and persists a new waiting room.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	actor, err := s.requireActiveActor(ctx, in.HostID)
	if err != nil {
		return nil, err
	}
	if !actor.CanHostRooms() {
		return nil, apperr.E(apperr.KindPermissionDenied, "only hosts and admins may create rooms")
	}

	now := s.now()
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Room " + now.UTC().Format("2006-01-02") + " " + now.UTC().Format("15:04:05")
	}

	maxParticipants := in.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = models.DefaultMaxParticipants
	}
	if maxParticipants < 1 || maxParticipants > models.MaxParticipantsCeiling {
		return nil, apperr.Ef(apperr.KindValidation, "max_participants must be between 1 and %d", models.MaxParticipantsCeiling)
	}

	slug, err := s.resolveSlug(ctx, in.Slug, name)
	if err != nil {
		return nil, err
	}

	open, err := s.rooms.CountOpenByHost(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "count open rooms")
	}
	if open >= models.MaxOpenRoomsPerHost {
		return nil, apperr.Ef(apperr.KindBusinessRule, "host already owns %d open rooms", open)
	}

	room := &models.Room{
		Name:            name,
		Slug:            slug,
		Status:          models.RoomStatusWaiting,
		HostID:          actor.ID,
		MaxParticipants: maxParticipants,
		AllowVideo:      in.AllowVideo,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		if err == ErrDuplicate {
			return nil, apperr.E(apperr.KindConflict, "slug already taken")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "create room")
	}

	s.publish(ctx, s.newEvent(EventRoomCreated, room.ID, map[string]interface{}{
		"host_id": room.HostID.String(),
		"slug":    room.Slug,
	}))
	s.logger.Info("room created",
		zap.String("room_id", room.ID.String()),
		zap.String("host_id", room.HostID.String()),
	)
	return room, nil
}

// resolveSlug validates or derives the slug and retries once with a
// millisecond suffix on a uniqueness collision.
func (s *Service) resolveSlug(ctx context.Context, requested, name string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" {
		slug = models.GenerateSlug(name)
		if slug == "" {
			slug = fmt.Sprintf("room-%d", s.now().UnixMilli())
		}
	} else if !models.ValidSlug(slug) {
		return "", apperr.E(apperr.KindValidation, "slug must match ^[a-z0-9-]+$ with no leading or trailing hyphen")
	}

	exists, err := s.rooms.SlugExists(ctx, slug)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInfrastructure, err, "check slug")
	}
	if !exists {
		return slug, nil
	}

	retry := fmt.Sprintf("%s-%d", slug, s.now().UnixMilli())
	if !models.ValidSlug(retry) {
		return "", apperr.E(apperr.KindConflict, "slug already taken")
	}
	exists, err = s.rooms.SlugExists(ctx, retry)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInfrastructure, err, "check slug")
	}
	if exists {
		return "", apperr.E(apperr.KindConflict, "slug already taken")
	}
	return retry, nil
}

// CloseRoom terminates the room: every active guest is expired in one batched
// mutation, then the room moves to closed. An in-flight recording is left
// untouched; its duration and size are not knowable yet.
func (s *Service) CloseRoom(ctx context.Context, actorID, roomID uuid.UUID) (*models.Room, error) {
	_, room, err := s.requireRoomManager(ctx, actorID, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == models.RoomStatusClosed {
		return nil, apperr.E(apperr.KindBusinessRule, "room is already closed")
	}

	now := s.now()
	expired, err := s.guests.ExpireActiveByRoom(ctx, roomID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "expire guests")
	}

	from := []models.RoomStatus{models.RoomStatusWaiting, models.RoomStatusActive, models.RoomStatusRecording}
	if err := s.rooms.UpdateStatusIf(ctx, roomID, from, models.RoomStatusClosed, now); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "room was closed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "close room")
	}

	s.publish(ctx, s.newEvent(EventRoomClosed, roomID, map[string]interface{}{
		"expired_guests": expired,
	}))
	if s.broadcast != nil {
		s.broadcast.RoomStatus(roomID, models.RoomStatusClosed)
	}
	s.logger.Info("room closed",
		zap.String("room_id", roomID.String()),
		zap.Int("expired_guests", expired),
	)
	return s.getRoom(ctx, roomID)
}

// ActivateRoom moves a waiting room to active when the host opens the session.
func (s *Service) ActivateRoom(ctx context.Context, actorID, roomID uuid.UUID) (*models.Room, error) {
	_, room, err := s.requireRoomManager(ctx, actorID, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusWaiting || !models.RoomCanTransition(room.Status, models.RoomStatusActive) {
		return nil, apperr.Ef(apperr.KindBusinessRule, "cannot activate a room in status %s", room.Status)
	}
	if err := s.rooms.UpdateStatusIf(ctx, roomID, []models.RoomStatus{models.RoomStatusWaiting}, models.RoomStatusActive, s.now()); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "room status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "activate room")
	}
	if s.broadcast != nil {
		s.broadcast.RoomStatus(roomID, models.RoomStatusActive)
	}
	return s.getRoom(ctx, roomID)
}

// GetRoom returns one room.
func (s *Service) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return s.getRoom(ctx, roomID)
}

// ListRooms returns rooms, optionally scoped to a host.
func (s *Service) ListRooms(ctx context.Context, hostID *uuid.UUID) ([]models.Room, error) {
	list, err := s.rooms.List(ctx, hostID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "list rooms")
	}
	return list, nil
}

package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/pkg/apperr"
	"github.com/echoroom/backend/pkg/token"
)

// InviteGuestInput is the command for InviteGuest.
type InviteGuestInput struct {
	ActorID     uuid.UUID
	RoomID      uuid.UUID
	DisplayName string
	Email       string
	// TokenHours is the token lifetime; 0 means the 24h default.
	TokenHours int
}

// InviteGuestResult carries the raw secret exactly once; only its hash is
// retained.
type InviteGuestResult struct {
	Guest     *models.GuestAccess `json:"guest"`
	Token     string              `json:"token"`
	InviteURL string              `json:"invite_url"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// InviteGuest admits a temporary participant: permission, room-open, capacity
// and duplicate-email checks, then token issuance and persistence.
func (s *Service) InviteGuest(ctx context.Context, in InviteGuestInput) (*InviteGuestResult, error) {
	_, room, err := s.requireRoomManager(ctx, in.ActorID, in.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOpen() {
		return nil, apperr.E(apperr.KindBusinessRule, "cannot invite guests to a closed room")
	}

	name := strings.TrimSpace(in.DisplayName)
	if !models.ValidGuestName(name) {
		return nil, apperr.E(apperr.KindValidation, "display name must be 1-100 characters")
	}
	if models.ReservedGuestName(name) {
		return nil, apperr.E(apperr.KindBusinessRule, "display name contains a reserved word")
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email != "" && !models.ValidGuestEmail(email) {
		return nil, apperr.E(apperr.KindValidation, "invalid email address")
	}

	hours := in.TokenHours
	if hours == 0 {
		hours = models.DefaultGuestTokenHours
	}
	if !models.ValidTokenHours(hours) {
		return nil, apperr.Ef(apperr.KindValidation, "token lifetime must be between %d and %d hours",
			models.MinGuestTokenHours, models.MaxGuestTokenHours)
	}

	now := s.now()
	count, err := s.guests.CountActiveByRoom(ctx, in.RoomID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "count active guests")
	}
	// The host always occupies one seat.
	if !room.CanAcceptParticipant(count + 1) {
		return nil, apperr.Ef(apperr.KindBusinessRule, "room capacity of %d reached", room.MaxParticipants)
	}

	if email != "" {
		exists, err := s.guests.ActiveEmailExists(ctx, in.RoomID, email, now)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInfrastructure, err, "check guest email")
		}
		if exists {
			return nil, apperr.E(apperr.KindConflict, "an active guest with this email already exists in the room")
		}
	}

	secret, err := s.tokens.Generate(token.DefaultLength)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "generate guest token")
	}

	guest := &models.GuestAccess{
		RoomID:         in.RoomID,
		DisplayName:    name,
		TokenHash:      s.tokens.Hash(secret),
		TokenExpiresAt: now.Add(time.Duration(hours) * time.Hour),
		InvitedBy:      in.ActorID,
	}
	if email != "" {
		guest.Email = &email
	}
	if err := s.guests.Create(ctx, guest); err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "create guest access")
	}

	s.publish(ctx, s.newEvent(EventGuestInvited, in.RoomID, map[string]interface{}{
		"guest_id":     guest.ID.String(),
		"display_name": guest.DisplayName,
	}))
	if s.broadcast != nil {
		s.broadcast.GuestChanged(in.RoomID, guest.ID, "invited")
	}
	s.logger.Info("guest invited",
		zap.String("room_id", in.RoomID.String()),
		zap.String("guest_id", guest.ID.String()),
	)

	inviteURL := fmt.Sprintf("%s/rooms/%s/join?token=%s", strings.TrimRight(s.inviteBaseURL, "/"), in.RoomID, secret)
	return &InviteGuestResult{
		Guest:     guest,
		Token:     secret,
		InviteURL: inviteURL,
		ExpiresAt: guest.TokenExpiresAt,
	}, nil
}

// LeaveGuest records a voluntary departure. A guest already left or kicked is
// immutable history.
func (s *Service) LeaveGuest(ctx context.Context, guestID uuid.UUID) (*models.GuestAccess, error) {
	guest, err := s.getGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if guest.LeftAt != nil || guest.KickedAt != nil {
		return nil, apperr.E(apperr.KindBusinessRule, "guest access already terminated")
	}

	now := s.now()
	if err := s.guests.MarkLeft(ctx, guestID, now); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindBusinessRule, "guest access already terminated")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "mark guest left")
	}

	s.publish(ctx, s.newEvent(EventUserLeft, guest.RoomID, map[string]interface{}{
		"guest_id": guestID.String(),
	}))
	if s.broadcast != nil {
		s.broadcast.GuestChanged(guest.RoomID, guestID, "left")
	}
	return s.getGuest(ctx, guestID)
}

// KickGuest records a forced removal by the room host or an admin.
func (s *Service) KickGuest(ctx context.Context, actorID, guestID uuid.UUID) (*models.GuestAccess, error) {
	guest, err := s.getGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.requireRoomManager(ctx, actorID, guest.RoomID); err != nil {
		return nil, err
	}
	if guest.LeftAt != nil || guest.KickedAt != nil {
		return nil, apperr.E(apperr.KindBusinessRule, "guest access already terminated")
	}

	now := s.now()
	if err := s.guests.MarkKicked(ctx, guestID, actorID, now); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindBusinessRule, "guest access already terminated")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "mark guest kicked")
	}

	s.publish(ctx, s.newEvent(EventUserKicked, guest.RoomID, map[string]interface{}{
		"guest_id":  guestID.String(),
		"kicked_by": actorID.String(),
	}))
	if s.broadcast != nil {
		s.broadcast.GuestChanged(guest.RoomID, guestID, "kicked")
	}
	return s.getGuest(ctx, guestID)
}

// ValidateGuestToken resolves a raw guest secret against the room's active
// guests. On success the guest's last-seen timestamp is touched best-effort.
func (s *Service) ValidateGuestToken(ctx context.Context, roomID uuid.UUID, secret string) (*models.GuestAccess, error) {
	if secret == "" {
		return nil, apperr.E(apperr.KindValidation, "token required")
	}
	now := s.now()
	active, err := s.guests.ListActiveByRoom(ctx, roomID, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "list active guests")
	}
	for i := range active {
		g := &active[i]
		if s.tokens.Verify(secret, g.TokenHash) {
			if err := s.guests.TouchLastSeen(ctx, g.ID, now); err != nil {
				s.logger.Warn("touch last seen failed",
					zap.String("guest_id", g.ID.String()),
					zap.Error(err),
				)
			}
			return g, nil
		}
	}
	return nil, apperr.E(apperr.KindNotFound, "invalid or expired guest token")
}

// ListGuests returns every guest access record for a room.
func (s *Service) ListGuests(ctx context.Context, actorID, roomID uuid.UUID) ([]models.GuestAccess, error) {
	if _, _, err := s.requireRoomManager(ctx, actorID, roomID); err != nil {
		return nil, err
	}
	list, err := s.guests.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "list guests")
	}
	return list, nil
}

func (s *Service) getGuest(ctx context.Context, guestID uuid.UUID) (*models.GuestAccess, error) {
	guest, err := s.guests.GetByID(ctx, guestID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.E(apperr.KindNotFound, "guest access not found")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "load guest access")
	}
	return guest, nil
}

package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultGuestTokenHours is used when an invitation omits a lifetime.
	DefaultGuestTokenHours = 24
	// MinGuestTokenHours and MaxGuestTokenHours bound caller-supplied lifetimes.
	MinGuestTokenHours = 1
	MaxGuestTokenHours = 168
)

// reservedGuestNames are rejected as guest display names (business rule).
var reservedGuestNames = []string{"admin", "system", "host", "moderator"}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// GuestAccess is a temporary, token-bearing participant grant scoped to one
// room. Once a guest leaves, is kicked, or its token expires the record is
// immutable history; a returning guest needs a new invitation.
type GuestAccess struct {
	ID             uuid.UUID  `json:"id"`
	RoomID         uuid.UUID  `json:"room_id"`
	DisplayName    string     `json:"display_name"`
	Email          *string    `json:"email,omitempty"`
	TokenHash      string     `json:"-"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
	KickedAt       *time.Time `json:"kicked_at,omitempty"`
	KickedBy       *uuid.UUID `json:"kicked_by,omitempty"`
	InvitedBy      uuid.UUID  `json:"invited_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsActive reports whether the guest may still participate at the given time.
func (g *GuestAccess) IsActive(now time.Time) bool {
	return g.LeftAt == nil && g.KickedAt == nil && g.TokenExpiresAt.After(now)
}

// ValidGuestName reports whether the display name has a legal length.
func ValidGuestName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n >= 1 && n <= 100
}

// ReservedGuestName reports whether the display name contains a reserved word.
func ReservedGuestName(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range reservedGuestNames {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ValidGuestEmail reports whether the email has a local@domain.tld shape.
func ValidGuestEmail(email string) bool {
	return emailShape.MatchString(email)
}

// ValidTokenHours reports whether a caller-supplied token lifetime is in range.
func ValidTokenHours(hours int) bool {
	return hours >= MinGuestTokenHours && hours <= MaxGuestTokenHours
}

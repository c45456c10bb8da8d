package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoomStatus represents the room lifecycle state.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusRecording RoomStatus = "recording"
	RoomStatusClosed    RoomStatus = "closed"
)

const (
	// DefaultMaxParticipants is used when room creation omits a capacity.
	DefaultMaxParticipants = 10
	// MaxParticipantsCeiling is the largest allowed room capacity.
	MaxParticipantsCeiling = 100
	// MaxOpenRoomsPerHost caps non-closed rooms a single host may own.
	MaxOpenRoomsPerHost = 5
)

// Room is a live collaboration session. Closure is terminal; rooms are never
// physically deleted.
type Room struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug,omitempty"`
	Status             RoomStatus `json:"status"`
	HostID             uuid.UUID  `json:"host_id"`
	MaxParticipants    int        `json:"max_participants"`
	AllowVideo         bool       `json:"allow_video"`
	RecordingStartedAt *time.Time `json:"recording_started_at,omitempty"`
	RecordingStoppedAt *time.Time `json:"recording_stopped_at,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// roomTransitions is the allowed (current -> targets) table. Closed has no
// outgoing edges.
var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomStatusWaiting:   {RoomStatusActive, RoomStatusClosed},
	RoomStatusActive:    {RoomStatusRecording, RoomStatusClosed},
	RoomStatusRecording: {RoomStatusActive, RoomStatusClosed},
	RoomStatusClosed:    {},
}

// RoomCanTransition reports whether a room may move from current to target.
func RoomCanTransition(current, target RoomStatus) bool {
	for _, t := range roomTransitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

// IsOpen reports whether the room is not closed.
func (r *Room) IsOpen() bool {
	return r.Status != RoomStatusClosed
}

// CanStartRecording reports whether the room status permits starting a
// recording. Sibling recording rows are checked separately by the orchestrator.
func (r *Room) CanStartRecording() bool {
	return r.Status == RoomStatusWaiting || r.Status == RoomStatusActive
}

// CanAcceptParticipant reports whether one more participant fits. currentCount
// includes the host.
func (r *Room) CanAcceptParticipant(currentCount int) bool {
	return r.IsOpen() && currentCount < r.MaxParticipants
}

var (
	slugInvalid    = regexp.MustCompile(`[^a-z0-9\- ]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugValid      = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// GenerateSlug derives a URL slug from a room name: lowercase, strip
// characters outside [a-z0-9- ], collapse whitespace to hyphens, trim leading
// and trailing hyphens. Returns "" when nothing usable remains.
func GenerateSlug(name string) string {
	s := strings.ToLower(name)
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-")
	if !ValidSlug(s) {
		return ""
	}
	return s
}

// ValidSlug reports whether s is a non-empty slug without leading or trailing
// hyphens.
func ValidSlug(s string) bool {
	if s == "" || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	return slugValid.MatchString(s)
}

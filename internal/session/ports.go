package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/echoroom/backend/internal/models"
)

var (
	// ErrNotFound is returned by stores when the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStale is returned by conditional updates when zero rows matched the
	// expected pre-state. The orchestrator treats it as a lost race, never as
	// success.
	ErrStale = errors.New("stale precondition")
	// ErrDuplicate is returned by stores when an insert or update loses a
	// uniqueness race (slug, folder name, one non-terminal recording per
	// room). The orchestrator maps it to a conflict, never to an
	// infrastructure fault.
	ErrDuplicate = errors.New("duplicate key")
)

// RoomStore persists room aggregates. Status changes go through UpdateStatusIf
// so two racing callers cannot both succeed.
type RoomStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	CountOpenByHost(ctx context.Context, hostID uuid.UUID) (int, error)
	// UpdateStatusIf moves the room to the target status only while its
	// current status is one of from, setting the lifecycle timestamp implied
	// by the target. Returns ErrStale on zero rows.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RoomStatus, to models.RoomStatus, at time.Time) error
	List(ctx context.Context, hostID *uuid.UUID) ([]models.Room, error)
}

// RecordingStore persists recording aggregates.
type RecordingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	Create(ctx context.Context, rec *models.Recording) error
	FolderNameExists(ctx context.Context, name string) (bool, error)
	// FindActiveByRoom returns the non-terminal recording for the room, or
	// nil when none exists.
	FindActiveByRoom(ctx context.Context, roomID uuid.UUID) (*models.Recording, error)
	// MarkUploading moves recording -> uploading, setting stopped_at and the
	// running duration. Returns ErrStale on zero rows.
	MarkUploading(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error
	// UpdateStatusIf moves the recording between statuses without touching
	// lifecycle fields. Returns ErrStale on zero rows.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RecordingStatus, to models.RecordingStatus) error
	// Complete finalizes the recording. Returns ErrStale on zero rows.
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int, totalSizeBytes int64, participantCount int) error
	// Fail marks the recording failed, setting stopped_at when still unset.
	Fail(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error
	// Delete removes the row; used only by saga compensation.
	Delete(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error)
}

// GuestStore persists guest access grants.
type GuestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.GuestAccess, error)
	Create(ctx context.Context, g *models.GuestAccess) error
	CountActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (int, error)
	ActiveEmailExists(ctx context.Context, roomID uuid.UUID, email string, now time.Time) (bool, error)
	// MarkLeft and MarkKicked only touch guests that are still active:
	// zero rows means the guest already left or was kicked (ErrStale).
	MarkLeft(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkKicked(ctx context.Context, id uuid.UUID, kickedBy uuid.UUID, at time.Time) error
	// ExpireActiveByRoom terminates every active guest of the room in one
	// batched mutation and returns how many were expired.
	ExpireActiveByRoom(ctx context.Context, roomID uuid.UUID, at time.Time) (int, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.GuestAccess, error)
	ListActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) ([]models.GuestAccess, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UserStore resolves acting users for permission checks.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// FolderStorage allocates and releases blob folders for recordings. Both
// operations are idempotent; deleting a missing folder succeeds.
type FolderStorage interface {
	CreateFolder(ctx context.Context, name string) (path string, err error)
	DeleteFolder(ctx context.Context, name string) error
}

// TokenService issues and verifies opaque guest secrets.
type TokenService interface {
	Generate(length int) (string, error)
	Hash(secret string) string
	Verify(secret, hash string) bool
}

// EventPublisher delivers domain events, fire-and-forget. Failures are logged
// by the orchestrator and never surfaced to callers.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broadcaster pushes best-effort realtime notifications to connected clients.
type Broadcaster interface {
	RecordingStarted(roomID, recordingID uuid.UUID)
	RecordingStopped(roomID, recordingID uuid.UUID)
	RoomStatus(roomID uuid.UUID, status models.RoomStatus)
	GuestChanged(roomID, guestID uuid.UUID, change string)
}

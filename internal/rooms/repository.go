package rooms

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/pkg/database"
)

// openStatuses are every non-closed room status.
var openStatuses = []string{
	string(models.RoomStatusWaiting),
	string(models.RoomStatusActive),
	string(models.RoomStatusRecording),
}

// Repository handles room persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rooms repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = `id, name, COALESCE(slug,''), status, host_id, max_participants, allow_video,
	recording_started_at, recording_stopped_at, closed_at, created_at, updated_at`

func scanRoom(row pgx.Row, r *models.Room) error {
	return row.Scan(&r.ID, &r.Name, &r.Slug, &r.Status, &r.HostID, &r.MaxParticipants, &r.AllowVideo,
		&r.RecordingStartedAt, &r.RecordingStoppedAt, &r.ClosedAt, &r.CreatedAt, &r.UpdatedAt)
}

// Create inserts a new room in status waiting. Losing an insert race on the
// slug unique index returns ErrDuplicate.
func (r *Repository) Create(ctx context.Context, room *models.Room) error {
	const q = `INSERT INTO rooms (id, name, slug, status, host_id, max_participants, allow_video)
		VALUES (gen_random_uuid(), $1, NULLIF($2,''), $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, room.Name, room.Slug, room.Status, room.HostID, room.MaxParticipants, room.AllowVideo).
		Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return session.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns a room by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room models.Room
	if err := scanRoom(r.pool.QueryRow(ctx, q, id), &room); err != nil {
		if err == pgx.ErrNoRows {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// SlugExists reports whether a room already uses the slug.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM rooms WHERE slug = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, slug).Scan(&exists)
	return exists, err
}

// CountOpenByHost returns how many non-closed rooms the host owns.
func (r *Repository) CountOpenByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM rooms WHERE host_id = $1 AND status = ANY($2)`
	var count int
	err := r.pool.QueryRow(ctx, q, hostID, openStatuses).Scan(&count)
	return count, err
}

// UpdateStatusIf moves the room to the target status only while its current
// status is one of from; the lifecycle timestamp implied by the target is set
// in the same statement. Zero affected rows is a lost race, reported as
// session.ErrStale.
func (r *Repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RoomStatus, to models.RoomStatus, at time.Time) error {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}

	var q string
	switch to {
	case models.RoomStatusRecording:
		q = `UPDATE rooms SET status = $1, recording_started_at = $2, updated_at = NOW()
			WHERE id = $3 AND status = ANY($4)`
	case models.RoomStatusActive:
		q = `UPDATE rooms SET status = $1, recording_stopped_at = CASE WHEN status = 'recording' THEN $2 ELSE recording_stopped_at END, updated_at = NOW()
			WHERE id = $3 AND status = ANY($4)`
	case models.RoomStatusClosed:
		q = `UPDATE rooms SET status = $1, closed_at = $2, updated_at = NOW()
			WHERE id = $3 AND status = ANY($4)`
	default:
		q = `UPDATE rooms SET status = $1, updated_at = GREATEST(NOW(), $2) WHERE id = $3 AND status = ANY($4)`
	}

	tag, err := r.pool.Exec(ctx, q, to, at, id, fromStr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// List returns rooms, optionally filtered by host, newest first.
func (r *Repository) List(ctx context.Context, hostID *uuid.UUID) ([]models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms`
	var args []interface{}
	if hostID != nil {
		q += ` WHERE host_id = $1`
		args = append(args, *hostID)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Room
	for rows.Next() {
		var room models.Room
		if err := scanRoom(rows, &room); err != nil {
			return nil, err
		}
		list = append(list, room)
	}
	return list, rows.Err()
}

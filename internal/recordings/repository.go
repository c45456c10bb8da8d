package recordings

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

// nonTerminalStatuses are the recording statuses that block a new capture.
var nonTerminalStatuses = []string{
	string(models.RecordingStatusRecording),
	string(models.RecordingStatusUploading),
	string(models.RecordingStatusProcessing),
}

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, room_id, folder_name, participant_count, status, started_at, stopped_at,
	completed_at, duration_seconds, total_size_bytes, created_by, deleted_at, created_at, updated_at`

func scanRecording(row pgx.Row, rec *models.Recording) error {
	return row.Scan(&rec.ID, &rec.RoomID, &rec.FolderName, &rec.ParticipantCount, &rec.Status,
		&rec.StartedAt, &rec.StoppedAt, &rec.CompletedAt, &rec.DurationSeconds, &rec.TotalSizeBytes,
		&rec.CreatedBy, &rec.DeletedAt, &rec.CreatedAt, &rec.UpdatedAt)
}

// Create inserts a new recording (when capture starts). Losing an insert race
// on the one-non-terminal-per-room index or the folder name returns
// ErrDuplicate.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (id, room_id, folder_name, participant_count, status, started_at, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, rec.RoomID, rec.FolderName, rec.ParticipantCount, rec.Status, rec.StartedAt, rec.CreatedBy).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return session.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns a recording by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1 AND deleted_at IS NULL`
	var rec models.Recording
	if err := scanRecording(r.pool.QueryRow(ctx, q, id), &rec); err != nil {
		if err == pgx.ErrNoRows {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FolderNameExists reports whether a recording already uses the folder name.
func (r *Repository) FolderNameExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM recordings WHERE folder_name = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, name).Scan(&exists)
	return exists, err
}

// FindActiveByRoom returns the non-terminal recording for the room, or nil.
func (r *Repository) FindActiveByRoom(ctx context.Context, roomID uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings
		WHERE room_id = $1 AND status = ANY($2) AND deleted_at IS NULL
		ORDER BY started_at DESC LIMIT 1`
	var rec models.Recording
	if err := scanRecording(r.pool.QueryRow(ctx, q, roomID, nonTerminalStatuses), &rec); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// MarkUploading moves recording -> uploading, setting stopped_at and the
// running duration. Zero rows means the capture already advanced.
func (r *Repository) MarkUploading(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error {
	const q = `UPDATE recordings SET status = $1, stopped_at = $2, duration_seconds = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusUploading, stoppedAt, durationSeconds, id, models.RecordingStatusRecording)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// UpdateStatusIf moves the recording between statuses without touching
// lifecycle fields.
func (r *Repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RecordingStatus, to models.RecordingStatus) error {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	const q = `UPDATE recordings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`
	tag, err := r.pool.Exec(ctx, q, to, id, fromStr)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return session.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// Complete finalizes the recording from any non-terminal status.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int, totalSizeBytes int64, participantCount int) error {
	const q = `UPDATE recordings SET status = $1, completed_at = $2, stopped_at = COALESCE(stopped_at, $2),
		duration_seconds = $3, total_size_bytes = $4, participant_count = $5, updated_at = NOW()
		WHERE id = $6 AND status = ANY($7)`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusCompleted, completedAt, durationSeconds, totalSizeBytes, participantCount, id, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// Fail marks the recording failed, keeping an earlier stopped_at when set.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error {
	const q = `UPDATE recordings SET status = $1, stopped_at = COALESCE(stopped_at, $2), duration_seconds = $3, updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusFailed, stoppedAt, durationSeconds, id, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// Delete removes the row outright. Only saga compensation calls this; normal
// removal is SoftDelete.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM recordings WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// SoftDelete hides the recording from listings without losing history.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE recordings SET deleted_at = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, at, id)
	return err
}

// ListByRoom returns non-deleted recordings for a room, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings
		WHERE room_id = $1 AND deleted_at IS NULL ORDER BY started_at DESC`
	rows, err := r.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := scanRecording(rows, &rec); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

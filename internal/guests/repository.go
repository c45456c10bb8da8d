package guests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/internal/session"
)

// Repository handles guest access persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a guest access repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const guestColumns = `id, room_id, display_name, email, token_hash, token_expires_at, joined_at,
	last_seen_at, left_at, kicked_at, kicked_by, invited_by, created_at`

func scanGuest(row pgx.Row, g *models.GuestAccess) error {
	return row.Scan(&g.ID, &g.RoomID, &g.DisplayName, &g.Email, &g.TokenHash, &g.TokenExpiresAt,
		&g.JoinedAt, &g.LastSeenAt, &g.LeftAt, &g.KickedAt, &g.KickedBy, &g.InvitedBy, &g.CreatedAt)
}

// Create inserts a new guest access grant.
func (r *Repository) Create(ctx context.Context, g *models.GuestAccess) error {
	const q = `INSERT INTO guest_access (id, room_id, display_name, email, token_hash, token_expires_at, invited_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, g.RoomID, g.DisplayName, g.Email, g.TokenHash, g.TokenExpiresAt, g.InvitedBy).
		Scan(&g.ID, &g.CreatedAt)
}

// GetByID returns a guest access record by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.GuestAccess, error) {
	const q = `SELECT ` + guestColumns + ` FROM guest_access WHERE id = $1`
	var g models.GuestAccess
	if err := scanGuest(r.pool.QueryRow(ctx, q, id), &g); err != nil {
		if err == pgx.ErrNoRows {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// CountActiveByRoom counts guests that have neither left nor been kicked and
// whose token is still valid at now.
func (r *Repository) CountActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM guest_access
		WHERE room_id = $1 AND left_at IS NULL AND kicked_at IS NULL AND token_expires_at > $2`
	var count int
	err := r.pool.QueryRow(ctx, q, roomID, now).Scan(&count)
	return count, err
}

// ActiveEmailExists reports whether an active guest with the email is already
// in the room.
func (r *Repository) ActiveEmailExists(ctx context.Context, roomID uuid.UUID, email string, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM guest_access
		WHERE room_id = $1 AND LOWER(email) = LOWER($2)
		AND left_at IS NULL AND kicked_at IS NULL AND token_expires_at > $3)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, roomID, email, now).Scan(&exists)
	return exists, err
}

// MarkLeft records a voluntary departure. Zero rows means the guest already
// left or was kicked (session.ErrStale).
func (r *Repository) MarkLeft(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE guest_access SET left_at = $1
		WHERE id = $2 AND left_at IS NULL AND kicked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// MarkKicked records a forced removal with the kicker identity.
func (r *Repository) MarkKicked(ctx context.Context, id uuid.UUID, kickedBy uuid.UUID, at time.Time) error {
	const q = `UPDATE guest_access SET kicked_at = $1, kicked_by = $2
		WHERE id = $3 AND left_at IS NULL AND kicked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, at, kickedBy, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrStale
	}
	return nil
}

// ExpireActiveByRoom terminates every active guest of the room in one batched
// update, as part of room closure.
func (r *Repository) ExpireActiveByRoom(ctx context.Context, roomID uuid.UUID, at time.Time) (int, error) {
	const q = `UPDATE guest_access SET left_at = $1
		WHERE room_id = $2 AND left_at IS NULL AND kicked_at IS NULL AND token_expires_at > $1`
	tag, err := r.pool.Exec(ctx, q, at, roomID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ListByRoom returns every guest access record for a room, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.GuestAccess, error) {
	const q = `SELECT ` + guestColumns + ` FROM guest_access WHERE room_id = $1 ORDER BY created_at DESC`
	return r.queryGuests(ctx, q, roomID)
}

// ListActiveByRoom returns only the currently active guests of a room.
func (r *Repository) ListActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) ([]models.GuestAccess, error) {
	const q = `SELECT ` + guestColumns + ` FROM guest_access
		WHERE room_id = $1 AND left_at IS NULL AND kicked_at IS NULL AND token_expires_at > $2
		ORDER BY created_at DESC`
	return r.queryGuests(ctx, q, roomID, now)
}

// TouchLastSeen updates last_seen_at, setting joined_at on first contact.
func (r *Repository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE guest_access SET last_seen_at = $1, joined_at = COALESCE(joined_at, $1) WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, at, id)
	return err
}

func (r *Repository) queryGuests(ctx context.Context, q string, args ...interface{}) ([]models.GuestAccess, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.GuestAccess
	for rows.Next() {
		var g models.GuestAccess
		if err := scanGuest(rows, &g); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

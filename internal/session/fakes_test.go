package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echoroom/backend/internal/models"
)

type fakeRoomStore struct {
	rooms     map[uuid.UUID]*models.Room
	slugs     map[string]bool
	createErr error
	updateErr error
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[uuid.UUID]*models.Room), slugs: make(map[string]bool)}
}

func (s *fakeRoomStore) add(room *models.Room) *models.Room {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	s.rooms[room.ID] = room
	if room.Slug != "" {
		s.slugs[room.Slug] = true
	}
	return room
}

func (s *fakeRoomStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *fakeRoomStore) Create(ctx context.Context, room *models.Room) error {
	if s.createErr != nil {
		return s.createErr
	}
	room.ID = uuid.New()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	stored := *room
	s.rooms[room.ID] = &stored
	if room.Slug != "" {
		s.slugs[room.Slug] = true
	}
	return nil
}

func (s *fakeRoomStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	return s.slugs[slug], nil
}

func (s *fakeRoomStore) CountOpenByHost(ctx context.Context, hostID uuid.UUID) (int, error) {
	n := 0
	for _, r := range s.rooms {
		if r.HostID == hostID && r.Status != models.RoomStatusClosed {
			n++
		}
	}
	return n, nil
}

func (s *fakeRoomStore) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RoomStatus, to models.RoomStatus, at time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	room, ok := s.rooms[id]
	if !ok {
		return ErrStale
	}
	matched := false
	for _, f := range from {
		if room.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return ErrStale
	}
	room.Status = to
	switch to {
	case models.RoomStatusRecording:
		room.RecordingStartedAt = &at
	case models.RoomStatusActive:
		if room.RecordingStartedAt != nil {
			room.RecordingStoppedAt = &at
		}
	case models.RoomStatusClosed:
		room.ClosedAt = &at
	}
	room.UpdatedAt = at
	return nil
}

func (s *fakeRoomStore) List(ctx context.Context, hostID *uuid.UUID) ([]models.Room, error) {
	var out []models.Room
	for _, r := range s.rooms {
		if hostID == nil || r.HostID == *hostID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeRecordingStore struct {
	recs      map[uuid.UUID]*models.Recording
	createErr error
	deleted   []uuid.UUID
}

func newFakeRecordingStore() *fakeRecordingStore {
	return &fakeRecordingStore{recs: make(map[uuid.UUID]*models.Recording)}
}

func (s *fakeRecordingStore) add(rec *models.Recording) *models.Recording {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.recs[rec.ID] = rec
	return rec
}

func (s *fakeRecordingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	rec, ok := s.recs[id]
	if !ok || rec.DeletedAt != nil {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeRecordingStore) Create(ctx context.Context, rec *models.Recording) error {
	if s.createErr != nil {
		return s.createErr
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	stored := *rec
	s.recs[rec.ID] = &stored
	return nil
}

func (s *fakeRecordingStore) FolderNameExists(ctx context.Context, name string) (bool, error) {
	for _, r := range s.recs {
		if r.FolderName == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRecordingStore) FindActiveByRoom(ctx context.Context, roomID uuid.UUID) (*models.Recording, error) {
	for _, r := range s.recs {
		if r.RoomID == roomID && r.DeletedAt == nil && !r.IsTerminal() {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRecordingStore) MarkUploading(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error {
	rec, ok := s.recs[id]
	if !ok || rec.Status != models.RecordingStatusRecording {
		return ErrStale
	}
	rec.Status = models.RecordingStatusUploading
	rec.StoppedAt = &stoppedAt
	rec.DurationSeconds = durationSeconds
	return nil
}

func (s *fakeRecordingStore) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []models.RecordingStatus, to models.RecordingStatus) error {
	rec, ok := s.recs[id]
	if !ok {
		return ErrStale
	}
	for _, f := range from {
		if rec.Status == f {
			rec.Status = to
			return nil
		}
	}
	return ErrStale
}

func (s *fakeRecordingStore) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int, totalSizeBytes int64, participantCount int) error {
	rec, ok := s.recs[id]
	if !ok || rec.IsTerminal() {
		return ErrStale
	}
	rec.Status = models.RecordingStatusCompleted
	rec.CompletedAt = &completedAt
	if rec.StoppedAt == nil {
		rec.StoppedAt = &completedAt
	}
	rec.DurationSeconds = durationSeconds
	rec.TotalSizeBytes = totalSizeBytes
	rec.ParticipantCount = participantCount
	return nil
}

func (s *fakeRecordingStore) Fail(ctx context.Context, id uuid.UUID, stoppedAt time.Time, durationSeconds int) error {
	rec, ok := s.recs[id]
	if !ok || rec.IsTerminal() {
		return ErrStale
	}
	rec.Status = models.RecordingStatusFailed
	if rec.StoppedAt == nil {
		rec.StoppedAt = &stoppedAt
	}
	rec.DurationSeconds = durationSeconds
	return nil
}

func (s *fakeRecordingStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.recs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeRecordingStore) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	rec.DeletedAt = &at
	return nil
}

func (s *fakeRecordingStore) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Recording, error) {
	var out []models.Recording
	for _, r := range s.recs {
		if r.RoomID == roomID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeGuestStore struct {
	guests    map[uuid.UUID]*models.GuestAccess
	createErr error
}

func newFakeGuestStore() *fakeGuestStore {
	return &fakeGuestStore{guests: make(map[uuid.UUID]*models.GuestAccess)}
}

func (s *fakeGuestStore) add(g *models.GuestAccess) *models.GuestAccess {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	s.guests[g.ID] = g
	return g
}

func (s *fakeGuestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.GuestAccess, error) {
	g, ok := s.guests[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *fakeGuestStore) Create(ctx context.Context, g *models.GuestAccess) error {
	if s.createErr != nil {
		return s.createErr
	}
	g.ID = uuid.New()
	g.CreatedAt = time.Now()
	stored := *g
	s.guests[g.ID] = &stored
	return nil
}

func (s *fakeGuestStore) CountActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) (int, error) {
	n := 0
	for _, g := range s.guests {
		if g.RoomID == roomID && g.IsActive(now) {
			n++
		}
	}
	return n, nil
}

func (s *fakeGuestStore) ActiveEmailExists(ctx context.Context, roomID uuid.UUID, email string, now time.Time) (bool, error) {
	for _, g := range s.guests {
		if g.RoomID == roomID && g.IsActive(now) && g.Email != nil && *g.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeGuestStore) MarkLeft(ctx context.Context, id uuid.UUID, at time.Time) error {
	g, ok := s.guests[id]
	if !ok || g.LeftAt != nil || g.KickedAt != nil {
		return ErrStale
	}
	g.LeftAt = &at
	return nil
}

func (s *fakeGuestStore) MarkKicked(ctx context.Context, id uuid.UUID, kickedBy uuid.UUID, at time.Time) error {
	g, ok := s.guests[id]
	if !ok || g.LeftAt != nil || g.KickedAt != nil {
		return ErrStale
	}
	g.KickedAt = &at
	g.KickedBy = &kickedBy
	return nil
}

func (s *fakeGuestStore) ExpireActiveByRoom(ctx context.Context, roomID uuid.UUID, at time.Time) (int, error) {
	n := 0
	for _, g := range s.guests {
		if g.RoomID == roomID && g.IsActive(at) {
			g.LeftAt = &at
			n++
		}
	}
	return n, nil
}

func (s *fakeGuestStore) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.GuestAccess, error) {
	var out []models.GuestAccess
	for _, g := range s.guests {
		if g.RoomID == roomID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *fakeGuestStore) ListActiveByRoom(ctx context.Context, roomID uuid.UUID, now time.Time) ([]models.GuestAccess, error) {
	var out []models.GuestAccess
	for _, g := range s.guests {
		if g.RoomID == roomID && g.IsActive(now) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *fakeGuestStore) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	g, ok := s.guests[id]
	if !ok {
		return ErrNotFound
	}
	g.LastSeenAt = &at
	if g.JoinedAt == nil {
		g.JoinedAt = &at
	}
	return nil
}

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) add(u *models.User) *models.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

type fakeStorage struct {
	folders   map[string]bool
	deleted   []string
	createErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{folders: make(map[string]bool)}
}

func (s *fakeStorage) CreateFolder(ctx context.Context, name string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.folders[name] = true
	return "recordings/" + name + "/", nil
}

func (s *fakeStorage) DeleteFolder(ctx context.Context, name string) error {
	delete(s.folders, name)
	s.deleted = append(s.deleted, name)
	return nil
}

type fakeTokens struct {
	secret string
	genErr error
}

func (t *fakeTokens) Generate(length int) (string, error) {
	if t.genErr != nil {
		return "", t.genErr
	}
	if t.secret != "" {
		return t.secret, nil
	}
	return "test-secret", nil
}

func (t *fakeTokens) Hash(secret string) string { return "hash:" + secret }

func (t *fakeTokens) Verify(secret, hash string) bool { return hash == "hash:"+secret }

type fakeEvents struct {
	events []Event
	err    error
}

func (e *fakeEvents) Publish(ctx context.Context, ev Event) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEvents) names() []string {
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Name)
	}
	return out
}

type fakeBroadcaster struct {
	calls []string
}

func (b *fakeBroadcaster) RecordingStarted(roomID, recordingID uuid.UUID) {
	b.calls = append(b.calls, "recording_started")
}

func (b *fakeBroadcaster) RecordingStopped(roomID, recordingID uuid.UUID) {
	b.calls = append(b.calls, "recording_stopped")
}

func (b *fakeBroadcaster) RoomStatus(roomID uuid.UUID, status models.RoomStatus) {
	b.calls = append(b.calls, "room_status:"+string(status))
}

func (b *fakeBroadcaster) GuestChanged(roomID, guestID uuid.UUID, change string) {
	b.calls = append(b.calls, "guest:"+change)
}

// testEnv bundles the fakes behind a service with a fixed clock.
type testEnv struct {
	svc        *Service
	rooms      *fakeRoomStore
	recordings *fakeRecordingStore
	guests     *fakeGuestStore
	users      *fakeUserStore
	storage    *fakeStorage
	tokens     *fakeTokens
	events     *fakeEvents
	broadcast  *fakeBroadcaster
	now        time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		rooms:      newFakeRoomStore(),
		recordings: newFakeRecordingStore(),
		guests:     newFakeGuestStore(),
		users:      newFakeUserStore(),
		storage:    newFakeStorage(),
		tokens:     &fakeTokens{},
		events:     &fakeEvents{},
		broadcast:  &fakeBroadcaster{},
		now:        time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(Deps{
		Rooms:         env.rooms,
		Recordings:    env.recordings,
		Guests:        env.guests,
		Users:         env.users,
		Storage:       env.storage,
		Tokens:        env.tokens,
		Events:        env.events,
		Broadcast:     env.broadcast,
		InviteBaseURL: "https://rooms.example.com",
	})
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) host() *models.User {
	return env.users.add(&models.User{Role: models.RoleHost, IsActive: true, Email: "host@example.com"})
}

func (env *testEnv) admin() *models.User {
	return env.users.add(&models.User{Role: models.RoleAdmin, IsActive: true, Email: "admin@example.com"})
}

func (env *testEnv) member() *models.User {
	return env.users.add(&models.User{Role: models.RoleMember, IsActive: true, Email: "member@example.com"})
}

func (env *testEnv) room(host *models.User, status models.RoomStatus) *models.Room {
	return env.rooms.add(&models.Room{
		Name:            "Design Sync",
		Slug:            "design-sync-" + uuid.NewString()[:8],
		Status:          status,
		HostID:          host.ID,
		MaxParticipants: 3,
	})
}

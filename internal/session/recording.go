package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/pkg/apperr"
)

// StartRecordingResult is returned by StartRecording.
type StartRecordingResult struct {
	Recording  *models.Recording `json:"recording"`
	Room       *models.Room      `json:"room"`
	FolderPath string            `json:"folder_path"`
}

// StartRecording runs the canonical saga: permission and state checks, folder
// reservation, storage allocation, recording row creation, then the guarded
// room transition. Each committed step is compensated in reverse order when a
// later step fails; the caller always receives the original error.
func (s *Service) StartRecording(ctx context.Context, actorID, roomID uuid.UUID) (*StartRecordingResult, error) {
	actor, room, err := s.requireRoomManager(ctx, actorID, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == models.RoomStatusClosed {
		return nil, apperr.E(apperr.KindBusinessRule, "cannot start recording in a closed room")
	}
	if !room.CanStartRecording() {
		return nil, apperr.Ef(apperr.KindBusinessRule, "cannot start recording in status %s", room.Status)
	}

	// The recording table is authoritative over the room's status flag; the
	// flag may lag behind a crashed stop.
	active, err := s.recordings.FindActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "check active recording")
	}
	if active != nil {
		return nil, apperr.E(apperr.KindConflict, "a recording is already in progress for this room")
	}

	now := s.now()
	folder, err := s.reserveFolderName(ctx, room.Name)
	if err != nil {
		return nil, err
	}

	sg := newSaga(s.logger)

	path, err := s.storage.CreateFolder(ctx, folder)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "allocate storage folder")
	}
	sg.committed("create storage folder", func(ctx context.Context) error {
		return s.storage.DeleteFolder(ctx, folder)
	})

	rec := &models.Recording{
		RoomID:     roomID,
		FolderName: folder,
		Status:     models.RecordingStatusRecording,
		StartedAt:  now,
		CreatedBy:  actor.ID,
	}
	if err := s.recordings.Create(ctx, rec); err != nil {
		sg.unwind(ctx)
		if err == ErrDuplicate {
			// The other racer committed between our active check and this
			// insert; the partial unique index is the arbiter.
			return nil, apperr.E(apperr.KindConflict, "a recording is already in progress for this room")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "create recording")
	}
	sg.committed("create recording row", func(ctx context.Context) error {
		return s.recordings.Delete(ctx, rec.ID)
	})

	from := []models.RoomStatus{models.RoomStatusWaiting, models.RoomStatusActive}
	if err := s.rooms.UpdateStatusIf(ctx, roomID, from, models.RoomStatusRecording, now); err != nil {
		sg.unwind(ctx)
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "room status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "transition room to recording")
	}

	// Outside the consistency boundary: a broadcast failure never rolls back
	// storage or database state.
	if s.broadcast != nil {
		s.broadcast.RecordingStarted(roomID, rec.ID)
	}
	s.publish(ctx, s.newEvent(EventRecordingStarted, roomID, map[string]interface{}{
		"recording_id": rec.ID.String(),
		"folder_name":  folder,
	}))
	s.logger.Info("recording started",
		zap.String("room_id", roomID.String()),
		zap.String("recording_id", rec.ID.String()),
		zap.String("folder", folder),
	)

	updated, err := s.getRoom(ctx, roomID)
	if err != nil {
		updated = room
	}
	return &StartRecordingResult{Recording: rec, Room: updated, FolderPath: path}, nil
}

// reserveFolderName generates a unique folder name, retrying once with a
// millisecond suffix on collision.
func (s *Service) reserveFolderName(ctx context.Context, roomName string) (string, error) {
	now := s.now()
	folder := models.GenerateFolderName(roomName, now)
	exists, err := s.recordings.FolderNameExists(ctx, folder)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInfrastructure, err, "check folder name")
	}
	if !exists {
		return folder, nil
	}
	folder = fmt.Sprintf("%s_%d", folder, now.UnixMilli())
	exists, err = s.recordings.FolderNameExists(ctx, folder)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInfrastructure, err, "check folder name")
	}
	if exists {
		return "", apperr.E(apperr.KindConflict, "folder name already taken")
	}
	return folder, nil
}

// StopRecordingResult is returned by StopRecording.
type StopRecordingResult struct {
	Recording *models.Recording `json:"recording"`
	Room      *models.Room      `json:"room"`
}

// StopRecording mirrors the start saga: the recording moves to uploading with
// its running duration, then the room reverts to active. If the room update
// fails the recording status is reverted best-effort and the original error
// returned.
func (s *Service) StopRecording(ctx context.Context, actorID, roomID uuid.UUID) (*StopRecordingResult, error) {
	_, _, err := s.requireRoomManager(ctx, actorID, roomID)
	if err != nil {
		return nil, err
	}

	rec, err := s.recordings.FindActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "find active recording")
	}
	if rec == nil || !rec.IsInProgress() {
		return nil, apperr.E(apperr.KindBusinessRule, "no recording in progress for this room")
	}

	now := s.now()
	duration := rec.Duration(now)
	if err := s.recordings.MarkUploading(ctx, rec.ID, now, duration); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "recording status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "stop recording")
	}

	if err := s.rooms.UpdateStatusIf(ctx, roomID, []models.RoomStatus{models.RoomStatusRecording}, models.RoomStatusActive, now); err != nil {
		if revertErr := s.recordings.UpdateStatusIf(ctx, rec.ID,
			[]models.RecordingStatus{models.RecordingStatusUploading},
			models.RecordingStatusRecording); revertErr != nil {
			s.logger.Error("revert recording status failed",
				zap.String("recording_id", rec.ID.String()),
				zap.Error(revertErr),
			)
		}
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "room status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "transition room to active")
	}

	if s.broadcast != nil {
		s.broadcast.RecordingStopped(roomID, rec.ID)
	}
	s.publish(ctx, s.newEvent(EventRecordingStopped, roomID, map[string]interface{}{
		"recording_id":     rec.ID.String(),
		"duration_seconds": duration,
	}))
	s.logger.Info("recording stopped",
		zap.String("room_id", roomID.String()),
		zap.String("recording_id", rec.ID.String()),
		zap.Int("duration_seconds", duration),
	)

	updated, err := s.recordings.GetByID(ctx, rec.ID)
	if err != nil {
		updated = rec
	}
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return &StopRecordingResult{Recording: updated}, nil
	}
	return &StopRecordingResult{Recording: updated, Room: room}, nil
}

// CompleteRecordingInput is the command for CompleteRecording.
type CompleteRecordingInput struct {
	ActorID          uuid.UUID
	RecordingID      uuid.UUID
	TotalSizeBytes   *int64
	ParticipantCount *int
}

// CompleteRecording finalizes a recording from any non-terminal status.
// Caller-supplied size and participant count override stored values.
func (s *Service) CompleteRecording(ctx context.Context, in CompleteRecordingInput) (*models.Recording, error) {
	rec, err := s.loadRecordingForActor(ctx, in.ActorID, in.RecordingID)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case models.RecordingStatusCompleted:
		return nil, apperr.E(apperr.KindBusinessRule, "recording is already completed")
	case models.RecordingStatusFailed:
		return nil, apperr.E(apperr.KindBusinessRule, "cannot complete a failed recording")
	}

	now := s.now()
	duration := rec.Duration(now)
	size := rec.TotalSizeBytes
	if in.TotalSizeBytes != nil {
		size = *in.TotalSizeBytes
	}
	participants := rec.ParticipantCount
	if in.ParticipantCount != nil {
		participants = *in.ParticipantCount
	}

	if err := s.recordings.Complete(ctx, rec.ID, now, duration, size, participants); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "recording status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "complete recording")
	}

	s.publish(ctx, s.newEvent(EventRecordingCompleted, rec.RoomID, map[string]interface{}{
		"recording_id":     rec.ID.String(),
		"duration_seconds": duration,
		"total_size_bytes": size,
	}))
	s.logger.Info("recording completed",
		zap.String("recording_id", rec.ID.String()),
		zap.Int("duration_seconds", duration),
	)
	return s.recordings.GetByID(ctx, rec.ID)
}

// FailRecordingInput is the command for FailRecording.
type FailRecordingInput struct {
	ActorID     uuid.UUID
	RecordingID uuid.UUID
	Reason      models.FailureReason
}

// FailRecording marks a recording failed with a reason from the closed enum.
// The recording.failed event is tagged high priority.
func (s *Service) FailRecording(ctx context.Context, in FailRecordingInput) (*models.Recording, error) {
	rec, err := s.loadRecordingForActor(ctx, in.ActorID, in.RecordingID)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case models.RecordingStatusCompleted:
		return nil, apperr.E(apperr.KindBusinessRule, "cannot fail a completed recording")
	case models.RecordingStatusFailed:
		return nil, apperr.E(apperr.KindBusinessRule, "recording is already failed")
	}

	reason := in.Reason
	if reason == "" {
		reason = models.FailureSystemError
	}
	if !models.ValidFailureReason(reason) {
		return nil, apperr.Ef(apperr.KindValidation, "unknown failure reason %q", reason)
	}

	now := s.now()
	stoppedAt := now
	if rec.StoppedAt != nil {
		stoppedAt = *rec.StoppedAt
	}
	duration := rec.Duration(now)
	if err := s.recordings.Fail(ctx, rec.ID, stoppedAt, duration); err != nil {
		if err == ErrStale {
			return nil, apperr.E(apperr.KindConflict, "recording status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "fail recording")
	}

	ev := s.newEvent(EventRecordingFailed, rec.RoomID, map[string]interface{}{
		"recording_id": rec.ID.String(),
		"reason":       string(reason),
	})
	ev.Priority = PriorityHigh
	s.publish(ctx, ev)
	s.logger.Warn("recording failed",
		zap.String("recording_id", rec.ID.String()),
		zap.String("reason", string(reason)),
	)
	return s.recordings.GetByID(ctx, rec.ID)
}

// RetryRecording re-opens a failed recording for one more processing pass,
// moving it back to uploading. The one-non-terminal-recording-per-room rule
// still applies: a retry is rejected while another capture is in flight.
func (s *Service) RetryRecording(ctx context.Context, actorID, recordingID uuid.UUID) (*models.Recording, error) {
	rec, err := s.loadRecordingForActor(ctx, actorID, recordingID)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RecordingStatusFailed {
		return nil, apperr.Ef(apperr.KindBusinessRule, "only a failed recording can be retried, status is %s", rec.Status)
	}

	active, err := s.recordings.FindActiveByRoom(ctx, rec.RoomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "check active recording")
	}
	if active != nil {
		return nil, apperr.E(apperr.KindConflict, "a recording is already in progress for this room")
	}

	from := []models.RecordingStatus{models.RecordingStatusFailed}
	if err := s.recordings.UpdateStatusIf(ctx, rec.ID, from, models.RecordingStatusUploading); err != nil {
		if err == ErrStale || err == ErrDuplicate {
			return nil, apperr.E(apperr.KindConflict, "recording status changed concurrently")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "reopen recording")
	}

	s.logger.Info("recording retry",
		zap.String("recording_id", rec.ID.String()),
		zap.String("room_id", rec.RoomID.String()),
	)
	return s.recordings.GetByID(ctx, rec.ID)
}

// GetRecording returns one recording after checking the actor manages its
// room.
func (s *Service) GetRecording(ctx context.Context, actorID, recordingID uuid.UUID) (*models.Recording, error) {
	return s.loadRecordingForActor(ctx, actorID, recordingID)
}

// ListRecordings returns recordings for a room, newest first.
func (s *Service) ListRecordings(ctx context.Context, actorID, roomID uuid.UUID) ([]models.Recording, error) {
	if _, _, err := s.requireRoomManager(ctx, actorID, roomID); err != nil {
		return nil, err
	}
	list, err := s.recordings.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "list recordings")
	}
	return list, nil
}

// loadRecordingForActor resolves the recording and checks the actor manages
// its room.
func (s *Service) loadRecordingForActor(ctx context.Context, actorID, recordingID uuid.UUID) (*models.Recording, error) {
	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.E(apperr.KindNotFound, "recording not found")
		}
		return nil, apperr.Wrap(apperr.KindInfrastructure, err, "load recording")
	}
	if _, _, err := s.requireRoomManager(ctx, actorID, rec.RoomID); err != nil {
		return nil, err
	}
	return rec, nil
}

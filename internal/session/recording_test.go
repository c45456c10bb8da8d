package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/pkg/apperr"
)

func TestStartRecording(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)

	result, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if err != nil {
		t.Fatalf("start recording: %v", err)
	}
	if result.Recording.Status != models.RecordingStatusRecording {
		t.Fatalf("expected recording status, got %s", result.Recording.Status)
	}
	if !result.Recording.StartedAt.Equal(env.now) {
		t.Fatalf("expected started_at %v, got %v", env.now, result.Recording.StartedAt)
	}
	if result.Room.Status != models.RoomStatusRecording {
		t.Fatalf("expected room recording, got %s", result.Room.Status)
	}
	if result.FolderPath == "" {
		t.Fatal("expected folder path")
	}
	if !env.storage.folders[result.Recording.FolderName] {
		t.Fatalf("expected storage folder %q", result.Recording.FolderName)
	}
	if got := env.events.names(); len(got) != 1 || got[0] != EventRecordingStarted {
		t.Fatalf("expected [%s] events, got %v", EventRecordingStarted, got)
	}
	if len(env.broadcast.calls) != 1 || env.broadcast.calls[0] != "recording_started" {
		t.Fatalf("expected recording_started broadcast, got %v", env.broadcast.calls)
	}
}

func TestStartRecordingFromWaiting(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusWaiting)

	result, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if err != nil {
		t.Fatalf("start recording from waiting: %v", err)
	}
	if result.Room.Status != models.RoomStatusRecording {
		t.Fatalf("expected room recording, got %s", result.Room.Status)
	}
}

func TestStartRecordingClosedRoom(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusClosed)

	_, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

func TestStartRecordingAlreadyInProgress(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	// Room flag lags behind: still active, but a non-terminal recording exists.
	room := env.room(host, models.RoomStatusActive)
	env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusUploading,
		StartedAt: env.now.Add(-time.Hour),
	})

	_, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStartRecordingCompensatesOnRoomTransitionFailure(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	env.rooms.updateErr = ErrStale

	_, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(env.storage.deleted) != 1 {
		t.Fatalf("expected 1 folder compensation, got %v", env.storage.deleted)
	}
	if len(env.recordings.deleted) != 1 {
		t.Fatalf("expected 1 recording row compensation, got %v", env.recordings.deleted)
	}
	if len(env.storage.folders) != 0 {
		t.Fatalf("expected no folders left, got %v", env.storage.folders)
	}
	active, _ := env.recordings.FindActiveByRoom(context.Background(), room.ID)
	if active != nil {
		t.Fatal("expected no active recording after unwind")
	}
	if len(env.events.events) != 0 {
		t.Fatalf("expected no events after failed start, got %v", env.events.names())
	}
}

func TestStartRecordingCompensatesOnCreateFailure(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	env.recordings.createErr = errors.New("insert failed")

	_, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindInfrastructure) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if len(env.storage.deleted) != 1 {
		t.Fatalf("expected folder compensation, got %v", env.storage.deleted)
	}
	if len(env.recordings.deleted) != 0 {
		t.Fatalf("expected no recording compensation, got %v", env.recordings.deleted)
	}
}

func TestStartRecordingLosesInsertRace(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	// Both racers pass the active check; the loser's insert hits the
	// one-non-terminal-per-room index and the store reports a duplicate.
	env.recordings.createErr = ErrDuplicate

	_, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(env.storage.deleted) != 1 {
		t.Fatalf("expected folder compensation, got %v", env.storage.deleted)
	}
	if len(env.events.events) != 0 {
		t.Fatalf("expected no events after lost race, got %v", env.events.names())
	}
}

func TestStopRecording(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusRecording)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusRecording,
		StartedAt: env.now.Add(-90 * time.Second),
	})

	result, err := env.svc.StopRecording(context.Background(), host.ID, room.ID)
	if err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	if result.Recording.Status != models.RecordingStatusUploading {
		t.Fatalf("expected uploading, got %s", result.Recording.Status)
	}
	if result.Recording.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %d", result.Recording.DurationSeconds)
	}
	if result.Room.Status != models.RoomStatusActive {
		t.Fatalf("expected room active, got %s", result.Room.Status)
	}
	if result.Recording.ID != rec.ID {
		t.Fatalf("expected recording %s, got %s", rec.ID, result.Recording.ID)
	}
	if got := env.events.names(); len(got) != 1 || got[0] != EventRecordingStopped {
		t.Fatalf("expected [%s] events, got %v", EventRecordingStopped, got)
	}
}

func TestStopRecordingNoneInProgress(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)

	_, err := env.svc.StopRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

func TestStopRecordingRevertsOnRoomFailure(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusRecording)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusRecording,
		StartedAt: env.now.Add(-time.Minute),
	})
	env.rooms.updateErr = ErrStale

	_, err := env.svc.StopRecording(context.Background(), host.ID, room.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := env.recordings.GetByID(context.Background(), rec.ID)
	if got.Status != models.RecordingStatusRecording {
		t.Fatalf("expected recording status reverted, got %s", got.Status)
	}
}

func TestCompleteRecording(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	stopped := env.now.Add(-10 * time.Minute)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusProcessing,
		StartedAt: env.now.Add(-30 * time.Minute),
		StoppedAt: &stopped,
	})

	size := int64(4096)
	participants := 7
	done, err := env.svc.CompleteRecording(context.Background(), CompleteRecordingInput{
		ActorID:          host.ID,
		RecordingID:      rec.ID,
		TotalSizeBytes:   &size,
		ParticipantCount: &participants,
	})
	if err != nil {
		t.Fatalf("complete recording: %v", err)
	}
	if done.Status != models.RecordingStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.TotalSizeBytes != 4096 || done.ParticipantCount != 7 {
		t.Fatalf("expected overrides applied, got size=%d participants=%d", done.TotalSizeBytes, done.ParticipantCount)
	}
	// Duration measured start to stop, not start to now.
	if done.DurationSeconds != 20*60 {
		t.Fatalf("expected 1200s duration, got %d", done.DurationSeconds)
	}
}

func TestCompleteRecordingTerminalRejected(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)

	for _, status := range []models.RecordingStatus{models.RecordingStatusCompleted, models.RecordingStatusFailed} {
		rec := env.recordings.add(&models.Recording{
			RoomID:    room.ID,
			Status:    status,
			StartedAt: env.now.Add(-time.Hour),
		})
		_, err := env.svc.CompleteRecording(context.Background(), CompleteRecordingInput{
			ActorID:     host.ID,
			RecordingID: rec.ID,
		})
		if !apperr.Is(err, apperr.KindBusinessRule) {
			t.Fatalf("status %s: expected business rule error, got %v", status, err)
		}
	}
}

func TestFailRecordingDefaultReason(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusUploading,
		StartedAt: env.now.Add(-time.Hour),
	})

	failed, err := env.svc.FailRecording(context.Background(), FailRecordingInput{
		ActorID:     host.ID,
		RecordingID: rec.ID,
	})
	if err != nil {
		t.Fatalf("fail recording: %v", err)
	}
	if failed.Status != models.RecordingStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if len(env.events.events) != 1 {
		t.Fatalf("expected 1 event, got %v", env.events.names())
	}
	ev := env.events.events[0]
	if ev.Name != EventRecordingFailed || ev.Priority != PriorityHigh {
		t.Fatalf("expected high-priority %s, got %s/%s", EventRecordingFailed, ev.Name, ev.Priority)
	}
	if ev.Payload["reason"] != string(models.FailureSystemError) {
		t.Fatalf("expected default reason, got %v", ev.Payload["reason"])
	}
}

func TestFailRecordingUnknownReason(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusUploading,
		StartedAt: env.now.Add(-time.Hour),
	})

	_, err := env.svc.FailRecording(context.Background(), FailRecordingInput{
		ActorID:     host.ID,
		RecordingID: rec.ID,
		Reason:      "disk_on_fire",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFailRecordingTerminalRejected(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	rec := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusFailed,
		StartedAt: env.now.Add(-time.Hour),
	})

	_, err := env.svc.FailRecording(context.Background(), FailRecordingInput{
		ActorID:     host.ID,
		RecordingID: rec.ID,
		Reason:      models.FailureNetworkError,
	})
	if !apperr.Is(err, apperr.KindBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
}

func TestStartRecordingEventFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	env.events.err = errors.New("redis down")

	result, err := env.svc.StartRecording(context.Background(), host.ID, room.ID)
	if err != nil {
		t.Fatalf("start recording: %v", err)
	}
	stored, _ := env.rooms.GetByID(context.Background(), room.ID)
	if stored.Status != models.RoomStatusRecording {
		t.Fatalf("expected room still recording, got %s", stored.Status)
	}
	if len(env.storage.deleted) != 0 || len(env.recordings.deleted) != 0 {
		t.Fatal("expected no compensation after publish failure")
	}
	if result.Recording.Status != models.RecordingStatusRecording {
		t.Fatalf("expected recording intact, got %s", result.Recording.Status)
	}
}

func TestRetryRecording(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	rec := env.recordings.add(&models.Recording{
		RoomID:     room.ID,
		FolderName: "design_sync_2026",
		Status:     models.RecordingStatusFailed,
		StartedAt:  env.now.Add(-time.Hour),
	})

	got, err := env.svc.RetryRecording(context.Background(), host.ID, rec.ID)
	if err != nil {
		t.Fatalf("retry recording: %v", err)
	}
	if got.Status != models.RecordingStatusUploading {
		t.Fatalf("expected uploading, got %s", got.Status)
	}
}

func TestRetryRecordingRejectsNonFailed(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)

	for _, status := range []models.RecordingStatus{
		models.RecordingStatusRecording,
		models.RecordingStatusUploading,
		models.RecordingStatusProcessing,
		models.RecordingStatusCompleted,
	} {
		rec := env.recordings.add(&models.Recording{
			RoomID:    room.ID,
			Status:    status,
			StartedAt: env.now.Add(-time.Hour),
		})
		_, err := env.svc.RetryRecording(context.Background(), host.ID, rec.ID)
		if !apperr.Is(err, apperr.KindBusinessRule) {
			t.Fatalf("status %s: expected business rule error, got %v", status, err)
		}
	}
}

func TestRetryRecordingBlockedByActiveRecording(t *testing.T) {
	env := newTestEnv()
	host := env.host()
	room := env.room(host, models.RoomStatusActive)
	failed := env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusFailed,
		StartedAt: env.now.Add(-2 * time.Hour),
	})
	env.recordings.add(&models.Recording{
		RoomID:    room.ID,
		Status:    models.RecordingStatusRecording,
		StartedAt: env.now.Add(-time.Minute),
	})

	_, err := env.svc.RetryRecording(context.Background(), host.ID, failed.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := env.recordings.GetByID(context.Background(), failed.ID)
	if stored.Status != models.RecordingStatusFailed {
		t.Fatalf("expected recording still failed, got %s", stored.Status)
	}
}

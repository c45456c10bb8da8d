package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordingStatus represents the recording capture/processing lifecycle.
type RecordingStatus string

const (
	RecordingStatusRecording  RecordingStatus = "recording"
	RecordingStatusUploading  RecordingStatus = "uploading"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

// FailureReason is the closed set of recording failure codes.
type FailureReason string

const (
	FailureStorageError    FailureReason = "storage_error"
	FailureProcessingError FailureReason = "processing_error"
	FailureNetworkError    FailureReason = "network_error"
	FailureUserError       FailureReason = "user_error"
	FailureSystemError     FailureReason = "system_error"
)

// ValidFailureReason reports whether r is a known failure code.
func ValidFailureReason(r FailureReason) bool {
	switch r {
	case FailureStorageError, FailureProcessingError, FailureNetworkError, FailureUserError, FailureSystemError:
		return true
	}
	return false
}

// Recording is one capture attempt tied to exactly one room. At most one
// recording per room may be non-terminal at a time.
type Recording struct {
	ID               uuid.UUID       `json:"id"`
	RoomID           uuid.UUID       `json:"room_id"`
	FolderName       string          `json:"folder_name"`
	ParticipantCount int             `json:"participant_count"`
	Status           RecordingStatus `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	StoppedAt        *time.Time      `json:"stopped_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds  int             `json:"duration_seconds"`
	TotalSizeBytes   int64           `json:"total_size_bytes"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// recordingTransitions is the allowed (current -> targets) table. Completed is
// absorbing; failed permits one controlled re-entry to uploading (retry).
var recordingTransitions = map[RecordingStatus][]RecordingStatus{
	RecordingStatusRecording:  {RecordingStatusUploading, RecordingStatusFailed},
	RecordingStatusUploading:  {RecordingStatusProcessing, RecordingStatusFailed},
	RecordingStatusProcessing: {RecordingStatusCompleted, RecordingStatusFailed},
	RecordingStatusFailed:     {RecordingStatusUploading},
	RecordingStatusCompleted:  {},
}

// RecordingCanTransition reports whether a recording may move from current to
// target.
func RecordingCanTransition(current, target RecordingStatus) bool {
	for _, t := range recordingTransitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

// IsInProgress reports whether capture is still running.
func (r *Recording) IsInProgress() bool {
	return r.Status == RecordingStatusRecording
}

// IsTerminal reports whether the recording reached completed or failed.
func (r *Recording) IsTerminal() bool {
	return r.Status == RecordingStatusCompleted || r.Status == RecordingStatusFailed
}

// Duration returns whole seconds between StartedAt and StoppedAt (or now when
// still running), floored at zero against clock skew.
func (r *Recording) Duration(now time.Time) int {
	end := now
	if r.StoppedAt != nil {
		end = *r.StoppedAt
	}
	d := int(end.Sub(r.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

var folderInvalid = regexp.MustCompile(`[^A-Za-z0-9_]`)

// GenerateFolderName builds a storage folder name from the room name and the
// recording start time: sanitized name truncated to 50 chars plus an ISO-8601
// timestamp with ':' and '.' replaced by '-'. Uniqueness is enforced by the
// orchestrator.
func GenerateFolderName(roomName string, startedAt time.Time) string {
	base := folderInvalid.ReplaceAllString(roomName, "_")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "recording"
	}
	ts := startedAt.UTC().Format(time.RFC3339)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return base + "_" + ts
}

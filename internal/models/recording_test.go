package models

import (
	"strings"
	"testing"
	"time"
)

func TestRecordingCanTransition(t *testing.T) {
	cases := []struct {
		from, to RecordingStatus
		want     bool
	}{
		{RecordingStatusRecording, RecordingStatusUploading, true},
		{RecordingStatusRecording, RecordingStatusFailed, true},
		{RecordingStatusRecording, RecordingStatusProcessing, false},
		{RecordingStatusRecording, RecordingStatusCompleted, false},
		{RecordingStatusUploading, RecordingStatusProcessing, true},
		{RecordingStatusUploading, RecordingStatusFailed, true},
		{RecordingStatusUploading, RecordingStatusCompleted, false},
		{RecordingStatusProcessing, RecordingStatusCompleted, true},
		{RecordingStatusProcessing, RecordingStatusFailed, true},
		{RecordingStatusProcessing, RecordingStatusUploading, false},
		{RecordingStatusFailed, RecordingStatusUploading, true},
		{RecordingStatusFailed, RecordingStatusCompleted, false},
		{RecordingStatusCompleted, RecordingStatusFailed, false},
		{RecordingStatusCompleted, RecordingStatusUploading, false},
	}
	for _, tc := range cases {
		if got := RecordingCanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("RecordingCanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRecordingDuration(t *testing.T) {
	start := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	running := &Recording{StartedAt: start}
	if got := running.Duration(start.Add(90 * time.Second)); got != 90 {
		t.Errorf("running duration = %d, want 90", got)
	}

	stopped := start.Add(5 * time.Minute)
	done := &Recording{StartedAt: start, StoppedAt: &stopped}
	if got := done.Duration(start.Add(time.Hour)); got != 300 {
		t.Errorf("stopped duration = %d, want 300", got)
	}

	// Clock skew: stop before start floors at zero.
	early := start.Add(-time.Minute)
	skewed := &Recording{StartedAt: start, StoppedAt: &early}
	if got := skewed.Duration(start); got != 0 {
		t.Errorf("skewed duration = %d, want 0", got)
	}
}

func TestGenerateFolderName(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	got := GenerateFolderName("Design Sync!", at)
	if got != "Design_Sync__2026-03-15T10-30-00Z" {
		t.Errorf("unexpected folder name %q", got)
	}

	// An empty name falls back to "recording".
	if got := GenerateFolderName("", at); !strings.HasPrefix(got, "recording_") {
		t.Errorf("expected recording fallback, got %q", got)
	}

	long := GenerateFolderName(strings.Repeat("a", 80), at)
	base := strings.SplitN(long, "_2026", 2)[0]
	if len(base) != 50 {
		t.Errorf("expected base truncated to 50, got %d (%q)", len(base), long)
	}

	if strings.ContainsAny(long, ":.") {
		t.Errorf("folder name must not contain ':' or '.', got %q", long)
	}
}

func TestValidFailureReason(t *testing.T) {
	for _, r := range []FailureReason{FailureStorageError, FailureProcessingError, FailureNetworkError, FailureUserError, FailureSystemError} {
		if !ValidFailureReason(r) {
			t.Errorf("expected %q valid", r)
		}
	}
	if ValidFailureReason("disk_on_fire") {
		t.Error("expected unknown reason invalid")
	}
}

func TestRecordingIsTerminal(t *testing.T) {
	for status, want := range map[RecordingStatus]bool{
		RecordingStatusRecording:  false,
		RecordingStatusUploading:  false,
		RecordingStatusProcessing: false,
		RecordingStatusCompleted:  true,
		RecordingStatusFailed:     true,
	} {
		rec := &Recording{Status: status}
		if got := rec.IsTerminal(); got != want {
			t.Errorf("IsTerminal in %s = %v, want %v", status, got, want)
		}
	}
}

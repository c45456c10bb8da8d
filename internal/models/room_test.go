package models

import "testing"

func TestRoomCanTransition(t *testing.T) {
	cases := []struct {
		from, to RoomStatus
		want     bool
	}{
		{RoomStatusWaiting, RoomStatusActive, true},
		{RoomStatusWaiting, RoomStatusClosed, true},
		{RoomStatusWaiting, RoomStatusRecording, false},
		{RoomStatusActive, RoomStatusRecording, true},
		{RoomStatusActive, RoomStatusClosed, true},
		{RoomStatusActive, RoomStatusWaiting, false},
		{RoomStatusRecording, RoomStatusActive, true},
		{RoomStatusRecording, RoomStatusClosed, true},
		{RoomStatusRecording, RoomStatusWaiting, false},
		{RoomStatusClosed, RoomStatusWaiting, false},
		{RoomStatusClosed, RoomStatusActive, false},
		{RoomStatusClosed, RoomStatusRecording, false},
		{RoomStatusClosed, RoomStatusClosed, false},
	}
	for _, tc := range cases {
		if got := RoomCanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("RoomCanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRoomCanStartRecording(t *testing.T) {
	for status, want := range map[RoomStatus]bool{
		RoomStatusWaiting:   true,
		RoomStatusActive:    true,
		RoomStatusRecording: false,
		RoomStatusClosed:    false,
	} {
		room := &Room{Status: status}
		if got := room.CanStartRecording(); got != want {
			t.Errorf("CanStartRecording in %s = %v, want %v", status, got, want)
		}
	}
}

func TestRoomCanAcceptParticipant(t *testing.T) {
	room := &Room{Status: RoomStatusActive, MaxParticipants: 2}
	if !room.CanAcceptParticipant(1) {
		t.Error("expected room with one seat left to accept")
	}
	if room.CanAcceptParticipant(2) {
		t.Error("expected full room to reject")
	}
	closed := &Room{Status: RoomStatusClosed, MaxParticipants: 10}
	if closed.CanAcceptParticipant(0) {
		t.Error("expected closed room to reject")
	}
}

func TestGenerateSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Weekly Standup", "weekly-standup"},
		{"  Q1  Planning  ", "q1-planning"},
		{"Café ☕ Chat!", "caf-chat"},
		{"---", ""},
		{"!!!", ""},
		{"already-a-slug", "already-a-slug"},
	}
	for _, tc := range cases {
		if got := GenerateSlug(tc.name); got != tc.want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidSlug(t *testing.T) {
	for slug, want := range map[string]bool{
		"weekly-standup": true,
		"a":              true,
		"":               false,
		"-leading":       false,
		"trailing-":      false,
		"UPPER":          false,
		"with space":     false,
	} {
		if got := ValidSlug(slug); got != want {
			t.Errorf("ValidSlug(%q) = %v, want %v", slug, got, want)
		}
	}
}

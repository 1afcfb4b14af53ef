package textutil_test

import (
	"testing"

	"clipline/internal/tasks"
	"clipline/internal/textutil"
)

func TestHumanize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"not_recorded", "Not Recorded"},
		{"ready_to_post", "Ready To Post"},
		{"force-cleared", "Force Cleared"},
		{"  posted  ", "Posted"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := textutil.Humanize(tc.in); got != tc.want {
			t.Errorf("Humanize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStageAndRoleLabels(t *testing.T) {
	if got := textutil.StageLabel(tasks.StageReadyToPost); got != "Ready To Post" {
		t.Fatalf("StageLabel = %q", got)
	}
	if got := textutil.RoleLabel(tasks.RoleUploader); got != "Uploader" {
		t.Fatalf("RoleLabel = %q", got)
	}
}

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Episode 12:  The   Return", "Episode 12: The Return"},
		{"line\nbreak\ttab", "line break tab"},
		{"   padded   ", "padded"},
		{"untouched", "untouched"},
	}
	for _, tc := range cases {
		if got := textutil.CleanTitle(tc.in); got != tc.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

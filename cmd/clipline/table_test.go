package main

import (
	"strings"
	"testing"
)

func TestRenderColumnsQueueHeaders(t *testing.T) {
	out := renderColumns(queueListColumns, [][]string{
		{"a1b2c3d4", "Weekly recap", "Recorded", "on_track", "2.0h", "12.0", "-", "edit"},
	})
	for _, header := range []string{"ID", "TITLE", "STAGE", "DEADLINE", "AGE", "PRIORITY", "CLAIM", "NEXT"} {
		if !strings.Contains(out, header) {
			t.Fatalf("missing header %q in:\n%s", header, out)
		}
	}
	if !strings.Contains(out, "Weekly recap") {
		t.Fatalf("missing row value in:\n%s", out)
	}
}

func TestRenderColumnsTruncatesWideCells(t *testing.T) {
	long := strings.Repeat("episode ", 12)
	out := renderColumns(queueListColumns, [][]string{
		{"a1b2c3d4", long, "Recorded", "on_track", "2.0h", "12.0", "-", "edit"},
	})
	if strings.Contains(out, long) {
		t.Fatalf("title should be truncated:\n%s", out)
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("truncated title should carry an ellipsis:\n%s", out)
	}
}

func TestRenderColumnsPadsShortRows(t *testing.T) {
	out := renderColumns(timelineColumns, [][]string{
		{"2026-03-01 11:00", "task_created"},
	})
	if !strings.Contains(out, "task_created") {
		t.Fatalf("missing event cell in:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected bordered table output, got:\n%s", out)
	}
}

func TestRenderColumnsEmptySpec(t *testing.T) {
	if out := renderColumns(nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"clipline/internal/sla"
	"clipline/internal/tasks"
	"clipline/internal/textutil"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorizeStatus(status sla.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	switch status {
	case sla.StatusOnTrack:
		return ansiGreen + label + ansiReset
	case sla.StatusDueSoon:
		return ansiYellow + label + ansiReset
	case sla.StatusOverdue:
		return ansiRed + label + ansiReset
	default:
		return label
	}
}

func formatStamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatOptionalStamp(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return formatStamp(*ts)
}

func formatAge(age time.Duration) string {
	if age <= 0 {
		return "0m"
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm", int(age.Minutes()))
	}
	if age < 24*time.Hour {
		return fmt.Sprintf("%.1fh", age.Hours())
	}
	return fmt.Sprintf("%.1fd", age.Hours()/24)
}

func formatClaim(task *tasks.Task, now time.Time) string {
	if !task.Claim.Active(now) {
		return "-"
	}
	remaining := task.Claim.ExpiresAt.Sub(now).Round(time.Minute)
	return fmt.Sprintf("%s (%s, %s left)", task.Claim.Holder, textutil.RoleLabel(task.Claim.Role), remaining)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

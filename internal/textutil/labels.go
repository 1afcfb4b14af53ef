// Package textutil renders stage, role, and action identifiers as
// human-readable labels for tables and notifications.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipline/internal/tasks"
)

var titleCaser = cases.Title(language.Und)

// Humanize converts a snake_case identifier into a title-cased label.
func Humanize(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	words := strings.NewReplacer("_", " ", "-", " ").Replace(identifier)
	return titleCaser.String(words)
}

// StageLabel returns the display form of a stage, e.g. "Ready To Post".
func StageLabel(stage tasks.Stage) string {
	return Humanize(string(stage))
}

// RoleLabel returns the display form of a role.
func RoleLabel(role tasks.Role) string {
	return Humanize(string(role))
}

// CleanTitle normalizes a user-supplied task title: collapses separator
// runs into single spaces and trims the result.
func CleanTitle(raw string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range raw {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		case r == ' ':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		default:
			cleaned.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(cleaned.String())
}

package tasks

import (
	"strings"
	"time"
)

// Stage represents a task's position in the production sequence.
type Stage string

const (
	StageNotRecorded Stage = "not_recorded"
	StageRecorded    Stage = "recorded"
	StageEdited      Stage = "edited"
	StageReadyToPost Stage = "ready_to_post"
	StagePosted      Stage = "posted"
	StageRejected    Stage = "rejected"
)

var allStages = []Stage{
	StageNotRecorded,
	StageRecorded,
	StageEdited,
	StageReadyToPost,
	StagePosted,
	StageRejected,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// Terminal reports whether a stage ends the normal production flow.
func (s Stage) Terminal() bool {
	return s == StagePosted || s == StageRejected
}

// Role identifies which kind of worker may act on a task.
type Role string

const (
	RoleRecorder Role = "recorder"
	RoleEditor   Role = "editor"
	RoleUploader Role = "uploader"
	RoleAdmin    Role = "admin"
)

var roleSet = map[Role]struct{}{
	RoleRecorder: {},
	RoleEditor:   {},
	RoleUploader: {},
	RoleAdmin:    {},
}

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := roleSet[normalized]
	return normalized, ok
}

// Claim is a time-bounded exclusive hold on a task by one actor.
type Claim struct {
	Holder    string
	Role      Role
	ClaimedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the claim is held and unexpired at the given instant.
func (c *Claim) Active(now time.Time) bool {
	if c == nil || c.Holder == "" {
		return false
	}
	return c.ExpiresAt.After(now)
}

// Expired reports whether the claim exists but its lease has lapsed.
func (c *Claim) Expired(now time.Time) bool {
	if c == nil || c.Holder == "" {
		return false
	}
	return !c.ExpiresAt.After(now)
}

// StageNotes carries the free-text note each role may leave on a task.
type StageNotes struct {
	Recording string
	Editor    string
	Uploader  string
}

// Any reports whether at least one note is non-empty.
func (n StageNotes) Any() bool {
	return strings.TrimSpace(n.Recording) != "" ||
		strings.TrimSpace(n.Editor) != "" ||
		strings.TrimSpace(n.Uploader) != ""
}

// PostingInfo describes where and how a task was published.
type PostingInfo struct {
	URL           string
	Platform      string
	Account       string
	PostedAtLocal string
	PostingError  string
}

// Complete reports whether the fields required by the posted stage are present.
func (p PostingInfo) Complete() bool {
	return strings.TrimSpace(p.URL) != "" && strings.TrimSpace(p.Platform) != ""
}

// Task represents one unit of production work persisted in SQLite.
type Task struct {
	ID                  string
	Title               string
	Stage               Stage
	HasLockedPayload    bool
	PayloadRef          string
	Claim               *Claim
	RecordedAt          *time.Time
	EditedAt            *time.Time
	ReadyToPostAt       *time.Time
	PostedAt            *time.Time
	RejectedAt          *time.Time
	Notes               StageNotes
	Posting             PostingInfo
	CreatedAt           time.Time
	UpdatedAt           time.Time
	LastStatusChangedAt time.Time
}

// ClaimedBy reports whether the task is actively held by the given actor.
func (t *Task) ClaimedBy(actor string, now time.Time) bool {
	return t.Claim.Active(now) && t.Claim.Holder == actor
}

// ClaimedByOther reports whether the task is actively held by someone else.
func (t *Task) ClaimedByOther(actor string, now time.Time) bool {
	return t.Claim.Active(now) && t.Claim.Holder != actor
}

// StageTimestamp returns the recorded entry time for a stage, if any.
func (t *Task) StageTimestamp(stage Stage) *time.Time {
	switch stage {
	case StageRecorded:
		return t.RecordedAt
	case StageEdited:
		return t.EditedAt
	case StageReadyToPost:
		return t.ReadyToPostAt
	case StagePosted:
		return t.PostedAt
	case StageRejected:
		return t.RejectedAt
	default:
		return nil
	}
}

// StageCounts summarizes queue composition per stage.
type StageCounts map[Stage]int

// Total returns the number of tasks across all stages.
func (c StageCounts) Total() int {
	total := 0
	for _, count := range c {
		total += count
	}
	return total
}

package stage

import (
	"strings"
	"time"

	"clipline/internal/tasks"
)

// successors maps each stage to the stages legally reachable from it on the
// non-admin path: the linear production chain plus rejection from any
// non-terminal stage.
var successors = map[tasks.Stage][]tasks.Stage{
	tasks.StageNotRecorded: {tasks.StageRecorded, tasks.StageRejected},
	tasks.StageRecorded:    {tasks.StageEdited, tasks.StageRejected},
	tasks.StageEdited:      {tasks.StageReadyToPost, tasks.StageRejected},
	tasks.StageReadyToPost: {tasks.StagePosted, tasks.StageRejected},
	tasks.StagePosted:      {},
	tasks.StageRejected:    {},
}

// CanTransition reports whether target is a legal successor of from.
func CanTransition(from, target tasks.Stage) bool {
	for _, next := range successors[from] {
		if next == target {
			return true
		}
	}
	return false
}

// Successors returns the stages reachable from the given stage.
func Successors(from tasks.Stage) []tasks.Stage {
	next := successors[from]
	cp := make([]tasks.Stage, len(next))
	copy(cp, next)
	return cp
}

// Fields carries the caller-supplied values applied during a transition.
// Empty strings leave existing values untouched.
type Fields struct {
	RecordingNotes string
	EditorNotes    string
	UploaderNotes  string
	Posting        tasks.PostingInfo
}

// Validate checks a transition on the normal path: stage ordering first,
// then the target's field preconditions. Returns IllegalTransitionError or
// ValidationError from the tasks package.
func Validate(task *tasks.Task, target tasks.Stage, fields Fields) error {
	if !CanTransition(task.Stage, target) {
		return &tasks.IllegalTransitionError{From: task.Stage, To: target}
	}
	return validateTarget(task, target, fields)
}

// ValidateForced checks only the target's field preconditions, skipping the
// ordering rule. Reserved for the admin override path.
func ValidateForced(task *tasks.Task, target tasks.Stage, fields Fields) error {
	return validateTarget(task, target, fields)
}

func validateTarget(task *tasks.Task, target tasks.Stage, fields Fields) error {
	var missing []string

	switch target {
	case tasks.StageRecorded:
		if !task.HasLockedPayload {
			missing = append(missing, "locked_payload")
		}
	case tasks.StagePosted:
		posting := mergedPosting(task, fields)
		if strings.TrimSpace(posting.URL) == "" {
			missing = append(missing, "url")
		}
		if strings.TrimSpace(posting.Platform) == "" {
			missing = append(missing, "platform")
		}
	case tasks.StageRejected:
		notes := mergedNotes(task, fields)
		if !notes.Any() {
			missing = append(missing, "stage_note")
		}
	}

	if len(missing) > 0 {
		return &tasks.ValidationError{Target: target, Missing: missing}
	}
	return nil
}

// Apply returns a copy of the task advanced to the target stage with the
// supplied fields folded in, the matching stage timestamp stamped, and
// last_status_changed_at reset. It assumes Validate (or ValidateForced) has
// already passed.
func Apply(task *tasks.Task, target tasks.Stage, fields Fields, now time.Time) *tasks.Task {
	updated := *task
	now = now.UTC()

	updated.Notes = mergedNotes(task, fields)
	updated.Posting = mergedPosting(task, fields)
	updated.Stage = target
	updated.LastStatusChangedAt = now

	switch target {
	case tasks.StageRecorded:
		updated.RecordedAt = &now
	case tasks.StageEdited:
		updated.EditedAt = &now
	case tasks.StageReadyToPost:
		updated.ReadyToPostAt = &now
	case tasks.StagePosted:
		updated.PostedAt = &now
	case tasks.StageRejected:
		updated.RejectedAt = &now
	}

	return &updated
}

func mergedNotes(task *tasks.Task, fields Fields) tasks.StageNotes {
	notes := task.Notes
	if strings.TrimSpace(fields.RecordingNotes) != "" {
		notes.Recording = fields.RecordingNotes
	}
	if strings.TrimSpace(fields.EditorNotes) != "" {
		notes.Editor = fields.EditorNotes
	}
	if strings.TrimSpace(fields.UploaderNotes) != "" {
		notes.Uploader = fields.UploaderNotes
	}
	return notes
}

func mergedPosting(task *tasks.Task, fields Fields) tasks.PostingInfo {
	posting := task.Posting
	if strings.TrimSpace(fields.Posting.URL) != "" {
		posting.URL = fields.Posting.URL
	}
	if strings.TrimSpace(fields.Posting.Platform) != "" {
		posting.Platform = fields.Posting.Platform
	}
	if strings.TrimSpace(fields.Posting.Account) != "" {
		posting.Account = fields.Posting.Account
	}
	if strings.TrimSpace(fields.Posting.PostedAtLocal) != "" {
		posting.PostedAtLocal = fields.Posting.PostedAtLocal
	}
	if strings.TrimSpace(fields.Posting.PostingError) != "" {
		posting.PostingError = fields.Posting.PostingError
	}
	return posting
}

// RoleFor returns the role expected to drive a task into the target stage.
// Rejection is open to every production role, signalled by an empty role.
func RoleFor(target tasks.Stage) (tasks.Role, bool) {
	switch target {
	case tasks.StageRecorded:
		return tasks.RoleRecorder, true
	case tasks.StageEdited, tasks.StageReadyToPost:
		return tasks.RoleEditor, true
	case tasks.StagePosted:
		return tasks.RoleUploader, true
	default:
		return "", false
	}
}

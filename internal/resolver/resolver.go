package resolver

import (
	"time"

	"clipline/internal/tasks"
)

// ActionKey names the next thing that should happen to a task.
type ActionKey string

const (
	ActionAddPayload ActionKey = "add_payload"
	ActionRecord     ActionKey = "record"
	ActionEdit       ActionKey = "edit"
	ActionApprove    ActionKey = "approve"
	ActionPost       ActionKey = "post"
	ActionDone       ActionKey = "done"
	ActionBlocked    ActionKey = "blocked"
)

// Action is the resolver's verdict: what should happen next, who may do it,
// and whether the caller can act on it right now.
type Action struct {
	Key      ActionKey
	Role     tasks.Role
	Target   tasks.Stage
	Terminal bool
	Enabled  bool
	Reason   string
}

// Resolve walks the decision table top to bottom and returns the first
// matching action for the task. Enabled is false when the task is claimed by
// someone other than the caller, or when a field precondition would make the
// implied transition fail. The table mirrors the stage machine's rules; a
// change to one requires a matching change to the other.
func Resolve(task *tasks.Task, caller string, now time.Time) Action {
	action := baseAction(task)

	if action.Terminal {
		return action
	}
	if task.ClaimedByOther(caller, now) {
		action.Enabled = false
		action.Reason = "claimed by " + task.Claim.Holder
		return action
	}
	if action.Key == ActionPost && !task.Posting.Complete() {
		action.Enabled = false
		action.Reason = "posting url and platform required"
		return action
	}
	return action
}

func baseAction(task *tasks.Task) Action {
	switch {
	case !task.HasLockedPayload:
		return Action{Key: ActionAddPayload, Role: tasks.RoleRecorder, Enabled: true}
	case task.Stage == tasks.StageNotRecorded:
		return Action{Key: ActionRecord, Role: tasks.RoleRecorder, Target: tasks.StageRecorded, Enabled: true}
	case task.Stage == tasks.StageRecorded:
		return Action{Key: ActionEdit, Role: tasks.RoleEditor, Target: tasks.StageEdited, Enabled: true}
	case task.Stage == tasks.StageEdited:
		return Action{Key: ActionApprove, Role: tasks.RoleEditor, Target: tasks.StageReadyToPost, Enabled: true}
	case task.Stage == tasks.StageReadyToPost:
		return Action{Key: ActionPost, Role: tasks.RoleUploader, Target: tasks.StagePosted, Enabled: true}
	case task.Stage == tasks.StagePosted:
		return Action{Key: ActionDone, Terminal: true}
	default:
		return Action{Key: ActionBlocked, Role: tasks.RoleAdmin, Terminal: true, Reason: "rejected; admin intervention required"}
	}
}

// RequiredRole returns which role the resolver expects to act on the task in
// its current state. Terminal states return false.
func RequiredRole(task *tasks.Task) (tasks.Role, bool) {
	action := baseAction(task)
	if action.Terminal {
		return "", false
	}
	return action.Role, true
}

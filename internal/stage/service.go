package stage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"clipline/internal/audit"
	"clipline/internal/logging"
	"clipline/internal/notifications"
	"clipline/internal/tasks"
)

// Machine drives validated stage transitions against the task store.
type Machine struct {
	store    *tasks.Store
	notifier notifications.Service
	logger   *slog.Logger
}

// NewMachine constructs a Machine over the given store.
func NewMachine(store *tasks.Store, logger *slog.Logger) *Machine {
	return NewMachineWithNotifier(store, logger, nil)
}

// NewMachineWithNotifier constructs a Machine that announces committed
// transitions through the notifier. Delivery is best-effort; a failed notice
// never fails the transition.
func NewMachineWithNotifier(store *tasks.Store, logger *slog.Logger, notifier notifications.Service) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Machine{store: store, notifier: notifier, logger: logger}
}

// Transition moves a task to the target stage on behalf of an actor. Checks
// run in order: task exists, no live claim by someone else, acting role fits
// the target, ordering, then field preconditions. The commit is conditional
// on the task still being in its observed stage, and appends one transition
// event carrying the correlation id.
func (m *Machine) Transition(ctx context.Context, taskID, actor string, role tasks.Role, target tasks.Stage, fields Fields, correlationID string) (*tasks.Task, error) {
	task, err := m.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if task.ClaimedByOther(actor, now) {
		return nil, &tasks.ForbiddenError{
			Actor:  actor,
			Reason: "task " + taskID + " is claimed by " + task.Claim.Holder,
		}
	}
	if err := checkRole(role, target); err != nil {
		return nil, err
	}
	if err := Validate(task, target, fields); err != nil {
		return nil, err
	}

	updated := Apply(task, target, fields, now)
	committed, err := m.store.CommitTransition(ctx, updated, task.Stage, audit.Event{
		Type:          audit.TypeTransition,
		Actor:         actor,
		ActorRole:     string(role),
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("stage transition",
		logging.TaskID(taskID),
		logging.String("from", string(task.Stage)),
		logging.String("to", string(target)),
		logging.Actor(actor),
	)
	m.notify(ctx, committed, task.Stage, target)
	return committed, nil
}

// notify announces a committed transition. Rejections carry the note that
// justified them; everything else reads as an advance.
func (m *Machine) notify(ctx context.Context, task *tasks.Task, from, to tasks.Stage) {
	if m.notifier == nil {
		return
	}
	var err error
	if to == tasks.StageRejected {
		err = m.notifier.NotifyTaskRejected(ctx, task.Title, firstNote(task.Notes))
	} else {
		err = m.notifier.NotifyStageAdvanced(ctx, task.Title, string(from), string(to))
	}
	if err != nil {
		m.logger.Warn("transition notification failed", logging.Error(err))
	}
}

func firstNote(notes tasks.StageNotes) string {
	for _, note := range []string{notes.Recording, notes.Editor, notes.Uploader} {
		if strings.TrimSpace(note) != "" {
			return note
		}
	}
	return ""
}

// checkRole rejects transitions attempted by the wrong role. Admins pass any
// check; rejection is open to every production role.
func checkRole(role tasks.Role, target tasks.Stage) error {
	if role == tasks.RoleAdmin {
		return nil
	}
	required, ok := RoleFor(target)
	if !ok {
		// Rejection: any production role with a note may reject.
		if target == tasks.StageRejected {
			return nil
		}
		return &tasks.ForbiddenError{Reason: "no role may drive a task into " + string(target)}
	}
	if role != required {
		return &tasks.ForbiddenError{
			Reason: "transition to " + string(target) + " requires role " + string(required) + ", got " + string(role),
		}
	}
	return nil
}

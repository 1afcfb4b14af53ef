package api

import (
	"time"

	"clipline/internal/audit"
	"clipline/internal/resolver"
	"clipline/internal/sla"
	"clipline/internal/tasks"
	"clipline/internal/textutil"
	"clipline/internal/workflow"
)

// FromTask converts a task record to its API representation. The deadline
// and next-action fields are derived for the given caller at the given
// instant; pass an empty caller for an anonymous view.
func FromTask(task *tasks.Task, assessment sla.Assessment, caller string, now time.Time) TaskItem {
	if task == nil {
		return TaskItem{}
	}

	dto := TaskItem{
		ID:               task.ID,
		Title:            task.Title,
		Stage:            string(task.Stage),
		StageLabel:       textutil.StageLabel(task.Stage),
		HasLockedPayload: task.HasLockedPayload,
		PayloadRef:       task.PayloadRef,
		Notes: NotesInfo{
			Recording: task.Notes.Recording,
			Editor:    task.Notes.Editor,
			Uploader:  task.Notes.Uploader,
		},
		Deadline:   fromAssessment(assessment),
		NextAction: fromAction(resolver.Resolve(task, caller, now)),
	}

	if task.Claim != nil {
		dto.Claim = &ClaimInfo{
			Holder:    task.Claim.Holder,
			Role:      string(task.Claim.Role),
			ClaimedAt: formatStamp(task.Claim.ClaimedAt),
			ExpiresAt: formatStamp(task.Claim.ExpiresAt),
			Active:    task.Claim.Active(now),
		}
	}
	if task.Posting != (tasks.PostingInfo{}) {
		dto.Posting = &PostingInfo{
			URL:          task.Posting.URL,
			Platform:     task.Posting.Platform,
			Account:      task.Posting.Account,
			PostedAt:     task.Posting.PostedAtLocal,
			PostingError: task.Posting.PostingError,
		}
	}

	dto.CreatedAt = formatStamp(task.CreatedAt)
	dto.UpdatedAt = formatStamp(task.UpdatedAt)
	dto.LastStatusChangedAt = formatStamp(task.LastStatusChangedAt)
	dto.RecordedAt = formatOptional(task.RecordedAt)
	dto.EditedAt = formatOptional(task.EditedAt)
	dto.ReadyToPostAt = formatOptional(task.ReadyToPostAt)
	dto.PostedAt = formatOptional(task.PostedAt)
	dto.RejectedAt = formatOptional(task.RejectedAt)
	return dto
}

// FromEvent converts an audit event to transport form.
func FromEvent(event audit.Event) EventItem {
	return EventItem{
		Seq:           event.Seq,
		ID:            event.ID,
		TaskID:        event.TaskID,
		Type:          string(event.Type),
		FromStage:     event.FromStage,
		ToStage:       event.ToStage,
		Actor:         event.Actor,
		ActorRole:     event.ActorRole,
		CorrelationID: event.CorrelationID,
		CreatedAt:     formatStamp(event.CreatedAt),
		Metadata:      string(event.Metadata),
	}
}

// FromEvents converts a slice of audit events into API DTOs.
func FromEvents(events []audit.Event) []EventItem {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventItem, 0, len(events))
	for _, event := range events {
		out = append(out, FromEvent(event))
	}
	return out
}

// FromWorkflowStatus converts the background loop snapshot to API payload.
func FromWorkflowStatus(status workflow.Status) WorkflowInfo {
	return WorkflowInfo{
		Running:         status.Running,
		StartedAt:       formatStamp(status.StartedAt),
		LastReclaim:     formatStamp(status.LastReclaim),
		LastStaleSweep:  formatStamp(status.LastStaleSweep),
		LastOverdueScan: formatStamp(status.LastOverdueScan),
		LastError:       status.LastError,
	}
}

// MergeStats normalizes stage counts into a string-keyed payload.
func MergeStats(counts tasks.StageCounts) StatsResponse {
	out := make(map[string]int, len(counts))
	for stage, count := range counts {
		out[string(stage)] = count
	}
	return StatsResponse{Counts: out, Total: counts.Total()}
}

func fromAssessment(assessment sla.Assessment) DeadlineInfo {
	info := DeadlineInfo{
		Status:        string(assessment.Status),
		AgeInStage:    assessment.AgeInStage.Round(time.Second).String(),
		PriorityScore: assessment.PriorityScore,
	}
	if !assessment.Deadline.IsZero() {
		info.Deadline = formatStamp(assessment.Deadline)
	}
	return info
}

func fromAction(action resolver.Action) ActionInfo {
	return ActionInfo{
		Key:      string(action.Key),
		Role:     string(action.Role),
		Target:   string(action.Target),
		Terminal: action.Terminal,
		Enabled:  action.Enabled,
		Reason:   action.Reason,
	}
}

func formatStamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

func formatOptional(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatStamp(*ts)
}

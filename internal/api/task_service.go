package api

import (
	"context"
	"time"

	"clipline/internal/audit"
	"clipline/internal/sla"
	"clipline/internal/tasks"
)

// TaskReader abstracts the persistence interactions needed for API queries.
type TaskReader interface {
	List(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error)
	GetByID(ctx context.Context, id string) (*tasks.Task, error)
	Stats(ctx context.Context) (tasks.StageCounts, error)
	EventsForTask(ctx context.Context, taskID string, limit int) ([]audit.Event, error)
}

// TaskService exposes read-only task views returning API DTOs. Deadline and
// priority fields are recomputed per request from the current clock.
type TaskService struct {
	store TaskReader
	calc  *sla.Calculator
}

// NewTaskService constructs a TaskService around the provided reader.
func NewTaskService(store TaskReader, calc *sla.Calculator) *TaskService {
	if store == nil {
		return nil
	}
	return &TaskService{store: store, calc: calc}
}

// List returns tasks matching the filter, assessed for the given caller.
func (s *TaskService) List(ctx context.Context, filter tasks.Filter, caller string) ([]TaskItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]TaskItem, 0, len(list))
	for _, task := range list {
		out = append(out, FromTask(task, s.assess(task, counts, now), caller, now))
	}
	return out, nil
}

// Describe fetches a single task view.
func (s *TaskService) Describe(ctx context.Context, id, caller string) (*TaskItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	dto := FromTask(task, s.assess(task, counts, now), caller, now)
	return &dto, nil
}

// Timeline returns the task's audit history, oldest first.
func (s *TaskService) Timeline(ctx context.Context, taskID string, limit int) ([]EventItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	events, err := s.store.EventsForTask(ctx, taskID, limit)
	if err != nil {
		return nil, err
	}
	return FromEvents(events), nil
}

// Stats returns queue composition keyed by stage.
func (s *TaskService) Stats(ctx context.Context) (StatsResponse, error) {
	if s == nil || s.store == nil {
		return StatsResponse{}, nil
	}
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	return MergeStats(counts), nil
}

func (s *TaskService) assess(task *tasks.Task, counts tasks.StageCounts, now time.Time) sla.Assessment {
	if s.calc == nil {
		return sla.Assessment{}
	}
	return s.calc.AssessWithBacklog(task.Stage, task.LastStatusChangedAt, now, backlogForStage(task.Stage, counts))
}

// backlogForStage counts the competing work visible to whichever role owns
// the task's current stage.
func backlogForStage(stage tasks.Stage, counts tasks.StageCounts) int {
	switch stage {
	case tasks.StageNotRecorded:
		return counts[tasks.StageNotRecorded]
	case tasks.StageRecorded, tasks.StageEdited:
		return counts[tasks.StageRecorded] + counts[tasks.StageEdited]
	case tasks.StageReadyToPost:
		return counts[tasks.StageReadyToPost]
	default:
		return 0
	}
}

package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Store is the persistence surface the log writes through.
type Store interface {
	AppendEvent(ctx context.Context, event Event) error
	EventsForTask(ctx context.Context, taskID string, limit int) ([]Event, error)
}

// Log records and replays task history. Recording never fails the operation
// that caused it: a failed append is surfaced through the logger (the
// operator channel) while the primary result stands.
type Log struct {
	store  Store
	logger *slog.Logger
}

// NewLog constructs a Log over the given store.
func NewLog(store Store, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, logger: logger}
}

// Record appends an event, swallowing storage failures after alerting the
// operator channel. Use for collaborator-sourced events and for traces that
// must outlive a failed primary operation.
func (l *Log) Record(ctx context.Context, event Event) {
	if l == nil || l.store == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		l.logger.Error("audit event write failed",
			slog.String("task_id", event.TaskID),
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// Timeline returns a task's committed history, oldest first. A limit of zero
// means the full history.
func (l *Log) Timeline(ctx context.Context, taskID string, limit int) ([]Event, error) {
	return l.store.EventsForTask(ctx, taskID, limit)
}

// NewCorrelationID mints an identifier linking causally related events, such
// as a claim followed by the transition it enabled.
func NewCorrelationID() string {
	return uuid.NewString()
}

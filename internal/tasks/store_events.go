package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clipline/internal/audit"
)

// insertEvent appends one audit event inside the transaction that performs
// the mutation it describes, so history and state commit together.
func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadata any
	if len(event.Metadata) > 0 {
		metadata = string(event.Metadata)
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO task_events (
            event_id, task_id, event_type, from_stage, to_stage,
            actor, actor_role, correlation_id, created_at, metadata
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.TaskID,
		event.Type,
		nullableString(event.FromStage),
		nullableString(event.ToStage),
		nullableString(event.Actor),
		nullableString(event.ActorRole),
		nullableString(event.CorrelationID),
		formatTime(event.CreatedAt),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// AppendEvent records a standalone event outside any task mutation. Used by
// the audit log for collaborator-sourced events and for admin operations that
// must leave a trace even when the underlying mutation failed.
func (s *Store) AppendEvent(ctx context.Context, event audit.Event) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertEvent(ctx, tx, event)
	})
}

// EventsForTask returns a task's history ordered by creation time, oldest
// first, ties broken by insertion order. A limit of zero means no limit.
func (s *Store) EventsForTask(ctx context.Context, taskID string, limit int) ([]audit.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM task_events WHERE task_id = ? ORDER BY created_at, id`
	args := []any{taskID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

const eventColumns = `id, event_id, task_id, event_type, from_stage, to_stage,
    actor, actor_role, correlation_id, created_at, metadata`

func scanEvent(scanner interface{ Scan(dest ...any) error }) (audit.Event, error) {
	var (
		seq        int64
		eventID    string
		taskID     string
		eventType  string
		fromStage  sql.NullString
		toStage    sql.NullString
		actor      sql.NullString
		actorRole  sql.NullString
		corrID     sql.NullString
		createdRaw string
		metadata   sql.NullString
	)

	if err := scanner.Scan(
		&seq,
		&eventID,
		&taskID,
		&eventType,
		&fromStage,
		&toStage,
		&actor,
		&actorRole,
		&corrID,
		&createdRaw,
		&metadata,
	); err != nil {
		return audit.Event{}, err
	}

	event := audit.Event{
		Seq:           seq,
		ID:            eventID,
		TaskID:        taskID,
		Type:          audit.Type(eventType),
		FromStage:     fromStage.String,
		ToStage:       toStage.String,
		Actor:         actor.String,
		ActorRole:     actorRole.String,
		CorrelationID: corrID.String,
	}
	if metadata.Valid && metadata.String != "" {
		event.Metadata = []byte(metadata.String)
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		event.CreatedAt = t
	}
	return event, nil
}

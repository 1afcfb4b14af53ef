package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clipline/internal/audit"
)

// CommitTransition persists a validated stage change. The write is
// conditional on the task still being in the expected from-stage, so a
// concurrent transition loses cleanly with ErrConflict instead of clobbering
// state. The caller supplies the event header; task id, stages, and
// timestamp are filled in here so state and history always agree.
func (s *Store) CommitTransition(ctx context.Context, updated *Task, from Stage, event audit.Event) (*Task, error) {
	if updated == nil {
		return nil, errors.New("task is nil")
	}
	now := time.Now().UTC()
	updated.UpdatedAt = now

	event.TaskID = updated.ID
	event.FromStage = string(from)
	event.ToStage = string(updated.Stage)
	event.CreatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks
             SET stage = ?,
                 recorded_at = ?, edited_at = ?, ready_to_post_at = ?, posted_at = ?, rejected_at = ?,
                 recording_notes = ?, editor_notes = ?, uploader_notes = ?,
                 posting_url = ?, posting_platform = ?, posting_account = ?,
                 posting_posted_at_local = ?, posting_error = ?,
                 last_status_changed_at = ?, updated_at = ?
             WHERE id = ? AND stage = ?`,
			updated.Stage,
			nullableTime(updated.RecordedAt),
			nullableTime(updated.EditedAt),
			nullableTime(updated.ReadyToPostAt),
			nullableTime(updated.PostedAt),
			nullableTime(updated.RejectedAt),
			nullableString(updated.Notes.Recording),
			nullableString(updated.Notes.Editor),
			nullableString(updated.Notes.Uploader),
			nullableString(updated.Posting.URL),
			nullableString(updated.Posting.Platform),
			nullableString(updated.Posting.Account),
			nullableString(updated.Posting.PostedAtLocal),
			nullableString(updated.Posting.PostingError),
			formatTime(updated.LastStatusChangedAt),
			formatTime(now),
			updated.ID,
			from,
		)
		if err != nil {
			return fmt.Errorf("commit transition: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, updated.ID).Scan(&exists); err != nil {
				return fmt.Errorf("inspect task: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", ErrNotFound, updated.ID)
			}
			return fmt.Errorf("%w: task %s left stage %s concurrently", ErrConflict, updated.ID, from)
		}
		return s.insertEvent(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, updated.ID)
}

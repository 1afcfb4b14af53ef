package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clipline/internal/audit"
)

// AcquireClaim atomically claims a task for an actor. The update is a single
// conditional write: it succeeds only when no claim exists or the existing
// claim has expired, so concurrent attempts produce exactly one winner. On
// conflict the returned error names the current holder.
func (s *Store) AcquireClaim(ctx context.Context, taskID string, claim Claim, correlationID string) (*Task, error) {
	if claim.Holder == "" {
		return nil, errors.New("claim holder is required")
	}
	if !claim.ExpiresAt.After(claim.ClaimedAt) {
		return nil, errors.New("claim expiry must follow claim time")
	}

	now := claim.ClaimedAt.UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks
             SET claim_holder = ?, claim_role = ?, claim_claimed_at = ?, claim_expires_at = ?, updated_at = ?
             WHERE id = ? AND (claim_holder IS NULL OR claim_expires_at <= ?)`,
			claim.Holder,
			claim.Role,
			formatTime(claim.ClaimedAt),
			formatTime(claim.ExpiresAt),
			formatTime(now),
			taskID,
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("acquire claim: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return s.claimConflict(ctx, tx, taskID)
		}
		return s.insertEvent(ctx, tx, audit.Event{
			TaskID:        taskID,
			Type:          audit.TypeClaimed,
			Actor:         claim.Holder,
			ActorRole:     string(claim.Role),
			CorrelationID: correlationID,
			CreatedAt:     now,
			Metadata: audit.EncodeMetadata(map[string]any{
				"expires_at": claim.ExpiresAt.UTC().Format(time.RFC3339Nano),
			}),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, taskID)
}

// claimConflict distinguishes an unknown task from a live claim held by
// someone else after a failed conditional claim write.
func (s *Store) claimConflict(ctx context.Context, tx *sql.Tx, taskID string) error {
	var holder, role, expiresAt sql.NullString
	err := tx.QueryRowContext(
		ctx,
		`SELECT claim_holder, claim_role, claim_expires_at FROM tasks WHERE id = ?`,
		taskID,
	).Scan(&holder, &role, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return fmt.Errorf("inspect claim: %w", err)
	}
	return &AlreadyClaimedError{
		TaskID:    taskID,
		Holder:    holder.String,
		Role:      Role(role.String),
		ExpiresAt: expiresAt.String,
	}
}

// ReleaseClaim clears a task's claim. Without force the caller must be the
// current holder; with force any live claim is cleared. The eventType lets
// admin paths tag the release distinctly in the audit trail, and extra is
// merged into the event metadata so callers can attach their justification.
func (s *Store) ReleaseClaim(ctx context.Context, taskID, actor string, force bool, eventType audit.Type, correlationID string, extra map[string]any) error {
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var holder, role sql.NullString
		err := tx.QueryRowContext(
			ctx,
			`SELECT claim_holder, claim_role FROM tasks WHERE id = ?`,
			taskID,
		).Scan(&holder, &role)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, taskID)
		}
		if err != nil {
			return fmt.Errorf("inspect claim: %w", err)
		}

		if !holder.Valid || holder.String == "" {
			return fmt.Errorf("%w: task %s has no active claim", ErrNotClaimed, taskID)
		}
		if !force && holder.String != actor {
			return &ForbiddenError{
				Actor:  actor,
				Reason: fmt.Sprintf("task %s is claimed by %s", taskID, holder.String),
			}
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks
             SET claim_holder = NULL, claim_role = NULL, claim_claimed_at = NULL, claim_expires_at = NULL, updated_at = ?
             WHERE id = ? AND claim_holder = ?`,
			formatTime(now),
			taskID,
			holder.String,
		)
		if err != nil {
			return fmt.Errorf("release claim: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: claim on %s changed concurrently", ErrNotClaimed, taskID)
		}

		meta := map[string]any{
			"released_holder": holder.String,
			"forced":          force,
		}
		for key, value := range extra {
			meta[key] = value
		}
		return s.insertEvent(ctx, tx, audit.Event{
			TaskID:        taskID,
			Type:          eventType,
			Actor:         actor,
			CorrelationID: correlationID,
			CreatedAt:     now,
			Metadata:      audit.EncodeMetadata(meta),
		})
	})
}

// ClearExpiredClaims removes every claim whose expiry precedes the cutoff,
// appending one event per affected task. It never touches a live claim, so
// the sweep is idempotent and safe to run alongside foreground claims.
func (s *Store) ClearExpiredClaims(ctx context.Context, cutoff time.Time, eventType audit.Type, sweepActor string) (int64, error) {
	now := time.Now().UTC()
	var cleared int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cleared = 0
		rows, err := tx.QueryContext(
			ctx,
			`SELECT id, claim_holder, claim_role FROM tasks
             WHERE claim_holder IS NOT NULL AND claim_expires_at <= ?`,
			formatTime(cutoff),
		)
		if err != nil {
			return fmt.Errorf("select expired claims: %w", err)
		}

		type expired struct {
			taskID string
			holder string
			role   string
		}
		var found []expired
		for rows.Next() {
			var e expired
			if err := rows.Scan(&e.taskID, &e.holder, &e.role); err != nil {
				rows.Close()
				return err
			}
			found = append(found, e)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, e := range found {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE tasks
                 SET claim_holder = NULL, claim_role = NULL, claim_claimed_at = NULL, claim_expires_at = NULL, updated_at = ?
                 WHERE id = ? AND claim_holder = ? AND claim_expires_at <= ?`,
				formatTime(now),
				e.taskID,
				e.holder,
				formatTime(cutoff),
			)
			if err != nil {
				return fmt.Errorf("clear expired claim: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				continue
			}
			cleared++
			if err := s.insertEvent(ctx, tx, audit.Event{
				TaskID:    e.taskID,
				Type:      eventType,
				Actor:     sweepActor,
				CreatedAt: now,
				Metadata: audit.EncodeMetadata(map[string]any{
					"released_holder": e.holder,
					"released_role":   e.role,
				}),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cleared, nil
}

// ExpireClaim rewinds a live claim's expiry to now so the task becomes
// reclaimable through the normal lease path. Stage and payload are untouched.
// extra lands in the event metadata.
func (s *Store) ExpireClaim(ctx context.Context, taskID, actor string, eventType audit.Type, correlationID string, extra map[string]any) error {
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET claim_expires_at = ?, updated_at = ?
             WHERE id = ? AND claim_holder IS NOT NULL`,
			formatTime(now),
			formatTime(now),
			taskID,
		)
		if err != nil {
			return fmt.Errorf("expire claim: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
				return fmt.Errorf("inspect task: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", ErrNotFound, taskID)
			}
			return fmt.Errorf("%w: task %s has no active claim", ErrNotClaimed, taskID)
		}
		return s.insertEvent(ctx, tx, audit.Event{
			TaskID:        taskID,
			Type:          eventType,
			Actor:         actor,
			CorrelationID: correlationID,
			CreatedAt:     now,
			Metadata:      audit.EncodeMetadata(extra),
		})
	})
}

package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipline/internal/audit"
)

// ClaimState filters queue listings by lease status.
type ClaimState string

const (
	ClaimStateAny       ClaimState = ""
	ClaimStateClaimed   ClaimState = "claimed"
	ClaimStateUnclaimed ClaimState = "unclaimed"
)

// ParseClaimState converts a string into a ClaimState filter value.
func ParseClaimState(value string) (ClaimState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any":
		return ClaimStateAny, true
	case "claimed":
		return ClaimStateClaimed, true
	case "unclaimed":
		return ClaimStateUnclaimed, true
	default:
		return ClaimStateAny, false
	}
}

// Filter narrows queue listings. Zero values match everything. An expired
// claim counts as unclaimed, matching lease semantics.
type Filter struct {
	Stages     []Stage
	ClaimState ClaimState
	ClaimRole  Role
	Holder     string
}

// Create inserts a new task at the start of the pipeline: stage not_recorded,
// no claim, no payload.
func (s *Store) Create(ctx context.Context, title, actor string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := formatTime(now)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO tasks (
                id, title, stage, has_locked_payload,
                created_at, updated_at, last_status_changed_at
            ) VALUES (?, ?, ?, 0, ?, ?, ?)`,
			id,
			title,
			StageNotRecorded,
			timestamp,
			timestamp,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return s.insertEvent(ctx, tx, audit.Event{
			TaskID:    id,
			Type:      audit.TypeTaskCreated,
			ToStage:   string(StageNotRecorded),
			Actor:     actor,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Returns ErrNotFound for unknown IDs.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks matching the filter, ordered by creation time.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var clauses []string
	var args []any

	if len(filter.Stages) > 0 {
		clauses = append(clauses, `stage IN (`+makePlaceholders(len(filter.Stages))+`)`)
		for _, stage := range filter.Stages {
			args = append(args, stage)
		}
	}

	now := formatTime(time.Now().UTC())
	switch filter.ClaimState {
	case ClaimStateClaimed:
		clauses = append(clauses, `claim_holder IS NOT NULL AND claim_expires_at > ?`)
		args = append(args, now)
	case ClaimStateUnclaimed:
		clauses = append(clauses, `(claim_holder IS NULL OR claim_expires_at <= ?)`)
		args = append(args, now)
	}

	if filter.ClaimRole != "" {
		clauses = append(clauses, `claim_role = ?`)
		args = append(args, filter.ClaimRole)
	}
	if filter.Holder != "" {
		clauses = append(clauses, `claim_holder = ?`)
		args = append(args, filter.Holder)
	}

	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Stats returns a count of tasks grouped by stage.
func (s *Store) Stats(ctx context.Context) (StageCounts, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM tasks GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	counts := make(StageCounts)
	for rows.Next() {
		var stage Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		counts[stage] = count
	}
	return counts, rows.Err()
}

// BacklogForRole counts tasks currently waiting on the given role's stage.
// Used as a priority-score input; never for authorization.
func (s *Store) BacklogForRole(ctx context.Context, role Role) (int, error) {
	var stages []Stage
	switch role {
	case RoleRecorder:
		stages = []Stage{StageNotRecorded}
	case RoleEditor:
		stages = []Stage{StageRecorded, StageEdited}
	case RoleUploader:
		stages = []Stage{StageReadyToPost}
	default:
		return 0, nil
	}

	query := `SELECT COUNT(1) FROM tasks WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
	args := make([]any, len(stages))
	for i, stage := range stages {
		args[i] = stage
	}
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("backlog count: %w", err)
	}
	return count, nil
}

// AttachPayload marks the task's creative payload as locked in and stores an
// opaque reference to it. The payload content itself lives with a collaborator
// service; the coordinator only gates on its presence.
func (s *Store) AttachPayload(ctx context.Context, id, ref, actor string) (*Task, error) {
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE tasks SET has_locked_payload = 1, payload_ref = ?, updated_at = ? WHERE id = ?`,
			nullableString(ref),
			formatTime(now),
			id,
		)
		if err != nil {
			return fmt.Errorf("attach payload: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return s.insertEvent(ctx, tx, audit.Event{
			TaskID:    id,
			Type:      audit.TypePayloadAttached,
			Actor:     actor,
			CreatedAt: now,
			Metadata:  audit.EncodeMetadata(map[string]any{"payload_ref": ref}),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

const taskColumns = `id, title, stage, has_locked_payload, payload_ref,
    claim_holder, claim_role, claim_claimed_at, claim_expires_at,
    recorded_at, edited_at, ready_to_post_at, posted_at, rejected_at,
    recording_notes, editor_notes, uploader_notes,
    posting_url, posting_platform, posting_account, posting_posted_at_local, posting_error,
    created_at, updated_at, last_status_changed_at`

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id             string
		title          string
		stageStr       string
		lockedPayload  int
		payloadRef     sql.NullString
		claimHolder    sql.NullString
		claimRole      sql.NullString
		claimClaimedAt sql.NullString
		claimExpiresAt sql.NullString
		recordedAt     sql.NullString
		editedAt       sql.NullString
		readyToPostAt  sql.NullString
		postedAt       sql.NullString
		rejectedAt     sql.NullString
		recordingNotes sql.NullString
		editorNotes    sql.NullString
		uploaderNotes  sql.NullString
		postingURL     sql.NullString
		postingPlat    sql.NullString
		postingAcct    sql.NullString
		postedAtLocal  sql.NullString
		postingError   sql.NullString
		createdRaw     string
		updatedRaw     string
		lastChangedRaw string
	)

	if err := scanner.Scan(
		&id,
		&title,
		&stageStr,
		&lockedPayload,
		&payloadRef,
		&claimHolder,
		&claimRole,
		&claimClaimedAt,
		&claimExpiresAt,
		&recordedAt,
		&editedAt,
		&readyToPostAt,
		&postedAt,
		&rejectedAt,
		&recordingNotes,
		&editorNotes,
		&uploaderNotes,
		&postingURL,
		&postingPlat,
		&postingAcct,
		&postedAtLocal,
		&postingError,
		&createdRaw,
		&updatedRaw,
		&lastChangedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:               id,
		Title:            title,
		Stage:            Stage(stageStr),
		HasLockedPayload: lockedPayload != 0,
		PayloadRef:       payloadRef.String,
		Notes: StageNotes{
			Recording: recordingNotes.String,
			Editor:    editorNotes.String,
			Uploader:  uploaderNotes.String,
		},
		Posting: PostingInfo{
			URL:           postingURL.String,
			Platform:      postingPlat.String,
			Account:       postingAcct.String,
			PostedAtLocal: postedAtLocal.String,
			PostingError:  postingError.String,
		},
	}

	if claimHolder.Valid && claimHolder.String != "" {
		claim := &Claim{
			Holder: claimHolder.String,
			Role:   Role(claimRole.String),
		}
		if t, err := parseTimeString(claimClaimedAt.String); err == nil {
			claim.ClaimedAt = t
		}
		if t, err := parseTimeString(claimExpiresAt.String); err == nil {
			claim.ExpiresAt = t
		}
		task.Claim = claim
	}

	task.RecordedAt = parseOptionalTime(recordedAt)
	task.EditedAt = parseOptionalTime(editedAt)
	task.ReadyToPostAt = parseOptionalTime(readyToPostAt)
	task.PostedAt = parseOptionalTime(postedAt)
	task.RejectedAt = parseOptionalTime(rejectedAt)

	if t, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = t
	}
	if t, err := parseTimeString(lastChangedRaw); err == nil {
		task.LastStatusChangedAt = t
	}
	return task, nil
}

func parseOptionalTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

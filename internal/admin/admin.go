package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clipline/internal/audit"
	"clipline/internal/logging"
	"clipline/internal/stage"
	"clipline/internal/tasks"
)

// ErrReasonRequired rejects override calls with no justification. Every
// privileged operation records its reason in the audit trail.
var ErrReasonRequired = errors.New("a non-empty reason is required")

// ResetMode selects how ResetAssignments disposes of a claim.
type ResetMode string

const (
	// ResetExpire rewinds the claim's expiry to now, leaving it to the
	// normal lease path to reclaim.
	ResetExpire ResetMode = "expire"
	// ResetUnassign clears the claim outright.
	ResetUnassign ResetMode = "unassign"
)

// ParseResetMode converts a string into a ResetMode.
func ParseResetMode(value string) (ResetMode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ResetExpire):
		return ResetExpire, true
	case string(ResetUnassign):
		return ResetUnassign, true
	default:
		return "", false
	}
}

// Service exposes the privileged override operations. Overrides relax
// ordering and ownership checks but never the audit trail: every call leaves
// an admin_* event whether it succeeded or not.
type Service struct {
	store  *tasks.Store
	log    *audit.Log
	logger *slog.Logger
}

// NewService constructs the admin override service.
func NewService(store *tasks.Store, log *audit.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, log: log, logger: logger}
}

// ForceStatus moves a task to an arbitrary stage, skipping the ordering rule
// but still enforcing the target's field preconditions. The reason lands in
// the event metadata.
func (s *Service) ForceStatus(ctx context.Context, taskID, actor, reason string, target tasks.Stage, fields stage.Fields) (*tasks.Task, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	correlationID := audit.NewCorrelationID()
	task, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		s.recordFailure(ctx, taskID, actor, audit.TypeAdminForceStatus, reason, correlationID, err)
		return nil, err
	}

	if err := stage.ValidateForced(task, target, fields); err != nil {
		s.recordFailure(ctx, taskID, actor, audit.TypeAdminForceStatus, reason, correlationID, err)
		return nil, err
	}

	updated := stage.Apply(task, target, fields, time.Now().UTC())
	committed, err := s.store.CommitTransition(ctx, updated, task.Stage, audit.Event{
		Type:          audit.TypeAdminForceStatus,
		Actor:         actor,
		ActorRole:     string(tasks.RoleAdmin),
		CorrelationID: correlationID,
		Metadata:      audit.EncodeMetadata(map[string]any{"reason": reason}),
	})
	if err != nil {
		s.recordFailure(ctx, taskID, actor, audit.TypeAdminForceStatus, reason, correlationID, err)
		return nil, err
	}

	s.logger.Warn("admin forced stage",
		logging.TaskID(taskID),
		logging.String("from", string(task.Stage)),
		logging.String("to", string(target)),
		logging.Actor(actor),
		logging.String("reason", reason),
	)
	return committed, nil
}

// ClearClaim removes whatever claim a task holds without the caller needing
// to know the holder.
func (s *Service) ClearClaim(ctx context.Context, taskID, actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	correlationID := audit.NewCorrelationID()
	err := s.store.ReleaseClaim(ctx, taskID, actor, true, audit.TypeAdminClearClaim, correlationID, map[string]any{"reason": reason})
	if err != nil {
		s.recordFailure(ctx, taskID, actor, audit.TypeAdminClearClaim, reason, correlationID, err)
		return err
	}

	s.logger.Warn("admin cleared claim",
		logging.TaskID(taskID),
		logging.Actor(actor),
		logging.String("reason", reason),
	)
	return nil
}

// ResetAssignments disposes of a task's claim either by expiring it in place
// or clearing it outright. Stage and payload are untouched in both modes.
func (s *Service) ResetAssignments(ctx context.Context, taskID, actor string, mode ResetMode, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	correlationID := audit.NewCorrelationID()
	var err error
	meta := map[string]any{"reason": reason, "mode": string(mode)}
	switch mode {
	case ResetExpire:
		err = s.store.ExpireClaim(ctx, taskID, actor, audit.TypeAdminResetAssignment, correlationID, meta)
	case ResetUnassign:
		err = s.store.ReleaseClaim(ctx, taskID, actor, true, audit.TypeAdminResetAssignment, correlationID, meta)
	default:
		err = errors.New("unknown reset mode: " + string(mode))
	}
	if err != nil {
		s.recordFailure(ctx, taskID, actor, audit.TypeAdminResetAssignment, reason, correlationID, err)
		return err
	}

	s.logger.Warn("admin reset assignment",
		logging.TaskID(taskID),
		logging.Actor(actor),
		logging.String("mode", string(mode)),
		logging.String("reason", reason),
	)
	return nil
}

// recordFailure leaves an audit trace for an override that did not commit.
// Successful overrides log their event inside the mutation transaction; this
// covers the rejected ones so the trail shows every attempt.
func (s *Service) recordFailure(ctx context.Context, taskID, actor string, eventType audit.Type, reason, correlationID string, cause error) {
	s.log.Record(ctx, audit.Event{
		TaskID:        taskID,
		Type:          eventType,
		Actor:         actor,
		ActorRole:     string(tasks.RoleAdmin),
		CorrelationID: correlationID,
		Metadata: audit.EncodeMetadata(map[string]any{
			"reason":  reason,
			"outcome": "rejected",
			"error":   cause.Error(),
		}),
	})
}

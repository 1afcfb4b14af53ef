package lease

import (
	"context"
	"log/slog"
	"time"

	"clipline/internal/audit"
	"clipline/internal/logging"
	"clipline/internal/resolver"
	"clipline/internal/tasks"
)

// SweepActor tags audit events produced by background sweeps rather than a
// human worker.
const SweepActor = "lease-sweeper"

// Manager owns claim acquisition, release, and expiry recovery. All writes go
// through the store's conditional-update primitives, so two workers racing
// for the same task resolve to exactly one winner without blocking.
type Manager struct {
	store      *tasks.Store
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewManager constructs a Manager. defaultTTL applies when Claim is called
// with a zero TTL.
func NewManager(store *tasks.Store, defaultTTL time.Duration, logger *slog.Logger) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{store: store, defaultTTL: defaultTTL, logger: logger}
}

// Claim takes a time-bounded exclusive hold on a task. The acting role must
// match what the resolver expects for the task's current state; admins may
// claim anything. An expired claim counts as absent, so claiming over one
// succeeds.
func (m *Manager) Claim(ctx context.Context, taskID, actor string, role tasks.Role, ttl time.Duration, correlationID string) (*tasks.Task, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	task, err := m.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkClaimRole(task, role); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	claimed, err := m.store.AcquireClaim(ctx, taskID, tasks.Claim{
		Holder:    actor,
		Role:      role,
		ClaimedAt: now,
		ExpiresAt: now.Add(ttl),
	}, correlationID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("task claimed",
		logging.TaskID(taskID),
		logging.Actor(actor),
		logging.String(logging.FieldRole, string(role)),
		logging.Duration("ttl", ttl),
	)
	return claimed, nil
}

// Release gives up a claim. Only the holder may release; force bypasses the
// holder check and is reserved for the admin override path.
func (m *Manager) Release(ctx context.Context, taskID, actor string, force bool, correlationID string) error {
	if err := m.store.ReleaseClaim(ctx, taskID, actor, force, audit.TypeReleased, correlationID, nil); err != nil {
		return err
	}
	m.logger.Info("task released",
		logging.TaskID(taskID),
		logging.Actor(actor),
		logging.Bool("forced", force),
	)
	return nil
}

// ReclaimExpired clears every claim whose lease has lapsed, making those
// tasks visible as available again. Idempotent; it never touches a live
// claim.
func (m *Manager) ReclaimExpired(ctx context.Context) (int64, error) {
	count, err := m.store.ClearExpiredClaims(ctx, time.Now().UTC(), audit.TypeClaimReclaimed, SweepActor)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.logger.Info("reclaimed expired claims", logging.Int64("count", count))
	}
	return count, nil
}

// ReleaseStale force-clears claims whose expiry has passed by more than the
// margin. The janitorial backstop behind ReclaimExpired; also idempotent and
// safe to run alongside live claims.
func (m *Manager) ReleaseStale(ctx context.Context, margin time.Duration) (int64, error) {
	if margin < 0 {
		margin = 0
	}
	cutoff := time.Now().UTC().Add(-margin)
	count, err := m.store.ClearExpiredClaims(ctx, cutoff, audit.TypeClaimForceCleared, SweepActor)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.logger.Info("released stale claims",
			logging.Int64("count", count),
			logging.Duration("margin", margin),
		)
	}
	return count, nil
}

// checkClaimRole rejects claims whose role does not fit the work the task
// needs next. The role arrives with an already-authenticated actor identity;
// this revalidation is what stops a client from claiming outside its lane.
func checkClaimRole(task *tasks.Task, role tasks.Role) error {
	if role == tasks.RoleAdmin {
		return nil
	}
	required, ok := resolver.RequiredRole(task)
	if !ok {
		return &tasks.ForbiddenError{Reason: "task " + task.ID + " is in terminal stage " + string(task.Stage)}
	}
	if role != required {
		return &tasks.ForbiddenError{
			Reason: "task " + task.ID + " needs role " + string(required) + ", got " + string(role),
		}
	}
	return nil
}

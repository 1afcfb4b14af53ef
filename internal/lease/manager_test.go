package lease_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipline/internal/audit"
	"clipline/internal/lease"
	"clipline/internal/tasks"
	"clipline/internal/testsupport"
)

func newManager(t *testing.T) (*lease.Manager, *tasks.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return lease.NewManager(store, time.Hour, nil), store
}

func TestClaimRoleMustMatchWork(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()
	task := testsupport.NewLockedTask(t, store, "Awaiting recording")

	// The task sits at not_recorded; only recorders (or admins) may claim it.
	_, err := manager.Claim(ctx, task.ID, "ed", tasks.RoleEditor, 0, "")
	if !errors.Is(err, tasks.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for editor, got %v", err)
	}

	claimed, err := manager.Claim(ctx, task.ID, "rita", tasks.RoleRecorder, 0, "")
	if err != nil {
		t.Fatalf("recorder claim failed: %v", err)
	}
	if claimed.Claim == nil || claimed.Claim.Holder != "rita" {
		t.Fatalf("unexpected claim: %#v", claimed.Claim)
	}
	if !claimed.Claim.ExpiresAt.After(claimed.Claim.ClaimedAt) {
		t.Fatalf("lease must expire after it starts: %#v", claimed.Claim)
	}
}

func TestClaimAdminBypassesRoleCheck(t *testing.T) {
	manager, store := newManager(t)
	task := testsupport.NewLockedTask(t, store, "Admin grab")

	if _, err := manager.Claim(context.Background(), task.ID, "root", tasks.RoleAdmin, 0, ""); err != nil {
		t.Fatalf("admin claim failed: %v", err)
	}
}

func TestClaimTerminalStageForbidden(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()
	task := testsupport.NewLockedTask(t, store, "Already rejected")

	// Drive the task to rejected through the store's transition path.
	now := time.Now().UTC()
	updated := *task
	updated.Stage = tasks.StageRejected
	updated.RejectedAt = &now
	updated.Notes.Recording = "cancelled"
	updated.LastStatusChangedAt = now
	if _, err := store.CommitTransition(ctx, &updated, task.Stage, audit.Event{Type: audit.TypeTransition}); err != nil {
		t.Fatalf("seed rejected task: %v", err)
	}

	_, err := manager.Claim(ctx, task.ID, "rita", tasks.RoleRecorder, 0, "")
	if !errors.Is(err, tasks.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on terminal stage, got %v", err)
	}
}

func TestClaimCustomTTL(t *testing.T) {
	manager, store := newManager(t)
	task := testsupport.NewLockedTask(t, store, "Short lease")

	before := time.Now().UTC()
	claimed, err := manager.Claim(context.Background(), task.ID, "rita", tasks.RoleRecorder, 10*time.Minute, "")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	remaining := claimed.Claim.ExpiresAt.Sub(before)
	if remaining < 9*time.Minute || remaining > 11*time.Minute {
		t.Fatalf("expected roughly 10m lease, got %v", remaining)
	}
}

func TestReclaimExpiredLeavesLiveClaims(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()

	lapsed := testsupport.NewLockedTask(t, store, "Lapsed lease")
	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.AcquireClaim(ctx, lapsed.ID, tasks.Claim{
		Holder:    "rita",
		Role:      tasks.RoleRecorder,
		ClaimedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("seed lapsed claim: %v", err)
	}

	live := testsupport.NewLockedTask(t, store, "Live lease")
	if _, err := manager.Claim(ctx, live.ID, "sam", tasks.RoleRecorder, 0, ""); err != nil {
		t.Fatalf("live claim failed: %v", err)
	}

	count, err := manager.ReclaimExpired(ctx)
	if err != nil {
		t.Fatalf("ReclaimExpired failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", count)
	}

	events, err := store.EventsForTask(ctx, lapsed.ID, 0)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != audit.TypeClaimReclaimed {
		t.Fatalf("expected %s event, got %s", audit.TypeClaimReclaimed, last.Type)
	}
	if last.Actor != lease.SweepActor {
		t.Fatalf("sweep events carry the sweep actor, got %q", last.Actor)
	}
}

func TestReleaseStaleUsesMargin(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()

	// Expired 30 minutes ago: inside a one-hour margin, so the stale sweep
	// must leave it for the ordinary reclaimer.
	recent := testsupport.NewLockedTask(t, store, "Recently expired")
	past := time.Now().UTC().Add(-90 * time.Minute)
	if _, err := store.AcquireClaim(ctx, recent.ID, tasks.Claim{
		Holder:    "rita",
		Role:      tasks.RoleRecorder,
		ClaimedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	count, err := manager.ReleaseStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReleaseStale failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("claim inside the margin must survive, got %d cleared", count)
	}

	// With a tighter margin the same claim is fair game.
	count, err = manager.ReleaseStale(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseStale failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stale claim cleared, got %d", count)
	}

	events, err := store.EventsForTask(ctx, recent.ID, 0)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != audit.TypeClaimForceCleared {
		t.Fatalf("expected %s event, got %s", audit.TypeClaimForceCleared, last.Type)
	}
}

func TestReleaseRequiresHolder(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()
	task := testsupport.NewLockedTask(t, store, "Held")

	if _, err := manager.Claim(ctx, task.ID, "rita", tasks.RoleRecorder, 0, ""); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := manager.Release(ctx, task.ID, "sam", false, ""); !errors.Is(err, tasks.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := manager.Release(ctx, task.ID, "rita", false, ""); err != nil {
		t.Fatalf("holder release failed: %v", err)
	}
}

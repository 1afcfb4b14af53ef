package tasks_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipline/internal/audit"
	"clipline/internal/tasks"
	"clipline/internal/testsupport"
)

func TestAcquireClaimMutualExclusion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Contested task")
	now := time.Now().UTC()

	if _, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
		Holder:    "alice",
		Role:      tasks.RoleRecorder,
		ClaimedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	_, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
		Holder:    "bob",
		Role:      tasks.RoleRecorder,
		ClaimedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}, "")
	if !errors.Is(err, tasks.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	var conflict *tasks.AlreadyClaimedError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyClaimedError, got %T", err)
	}
	if conflict.Holder != "alice" {
		t.Fatalf("conflict should name the holder, got %q", conflict.Holder)
	}
}

func TestAcquireClaimConcurrentSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Race target")

	const workers = 8
	var wins atomic.Int32
	var conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-start
			now := time.Now().UTC()
			_, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
				Holder:    string(rune('a' + worker)),
				Role:      tasks.RoleRecorder,
				ClaimedAt: now,
				ExpiresAt: now.Add(time.Hour),
			}, "")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, tasks.ErrAlreadyClaimed):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if conflicts.Load() != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, conflicts.Load())
	}
}

func TestAcquireClaimOverExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Lapsed claim")

	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
		Holder:    "alice",
		Role:      tasks.RoleRecorder,
		ClaimedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("seed expired claim: %v", err)
	}

	now := time.Now().UTC()
	claimed, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
		Holder:    "bob",
		Role:      tasks.RoleRecorder,
		ClaimedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("claiming over an expired claim should succeed: %v", err)
	}
	if claimed.Claim == nil || claimed.Claim.Holder != "bob" {
		t.Fatalf("expected bob to hold the claim, got %#v", claimed.Claim)
	}
}

func TestAcquireClaimUnknownTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	now := time.Now().UTC()
	_, err := store.AcquireClaim(context.Background(), "missing", tasks.Claim{
		Holder:    "alice",
		Role:      tasks.RoleRecorder,
		ClaimedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}, "")
	if !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseClaimOwnership(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Held task")
	testsupport.ClaimTask(t, store, task.ID, "alice", tasks.RoleRecorder)

	err := store.ReleaseClaim(ctx, task.ID, "bob", false, audit.TypeReleased, "", nil)
	if !errors.Is(err, tasks.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-holder, got %v", err)
	}

	if err := store.ReleaseClaim(ctx, task.ID, "alice", false, audit.TypeReleased, "", nil); err != nil {
		t.Fatalf("holder release failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Claim != nil {
		t.Fatalf("claim should be cleared, got %#v", fetched.Claim)
	}

	err = store.ReleaseClaim(ctx, task.ID, "alice", false, audit.TypeReleased, "", nil)
	if !errors.Is(err, tasks.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed, got %v", err)
	}
}

func TestReleaseClaimForceBypassesHolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Force-released task")
	testsupport.ClaimTask(t, store, task.ID, "alice", tasks.RoleRecorder)

	if err := store.ReleaseClaim(ctx, task.ID, "admin", true, audit.TypeAdminClearClaim, "", nil); err != nil {
		t.Fatalf("forced release failed: %v", err)
	}

	events, err := store.EventsForTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	last := events[len(events)-1]
	if last.Type != audit.TypeAdminClearClaim {
		t.Fatalf("expected %s event, got %s", audit.TypeAdminClearClaim, last.Type)
	}
	meta := last.MetadataMap()
	if meta["released_holder"] != "alice" {
		t.Fatalf("event should record the displaced holder, got %v", meta)
	}
	if meta["forced"] != true {
		t.Fatalf("event should record forced=true, got %v", meta)
	}
}

func TestClearExpiredClaimsSparesLiveClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	expired := testsupport.NewTask(t, store, "Expired hold")
	live := testsupport.NewTask(t, store, "Live hold")

	past := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.AcquireClaim(ctx, expired.ID, tasks.Claim{
		Holder:    "alice",
		Role:      tasks.RoleRecorder,
		ClaimedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("seed expired claim: %v", err)
	}
	testsupport.ClaimTask(t, store, live.ID, "bob", tasks.RoleRecorder)

	cleared, err := store.ClearExpiredClaims(ctx, time.Now().UTC(), audit.TypeClaimReclaimed, "lease-sweeper")
	if err != nil {
		t.Fatalf("ClearExpiredClaims failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared claim, got %d", cleared)
	}

	gone, err := store.GetByID(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone.Claim != nil {
		t.Fatalf("expired claim should be cleared, got %#v", gone.Claim)
	}
	kept, err := store.GetByID(ctx, live.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept.Claim == nil || kept.Claim.Holder != "bob" {
		t.Fatalf("live claim must survive the sweep, got %#v", kept.Claim)
	}

	// Sweeping again is a no-op.
	again, err := store.ClearExpiredClaims(ctx, time.Now().UTC(), audit.TypeClaimReclaimed, "lease-sweeper")
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second sweep should clear nothing, got %d", again)
	}
}

func TestExpireClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewTask(t, store, "Soon to expire")
	testsupport.ClaimTask(t, store, task.ID, "alice", tasks.RoleRecorder)

	if err := store.ExpireClaim(ctx, task.ID, "admin", audit.TypeAdminResetAssignment, "", nil); err != nil {
		t.Fatalf("ExpireClaim failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Claim == nil {
		t.Fatal("claim row should survive, only its expiry rewound")
	}
	if fetched.Claim.Active(time.Now().UTC().Add(time.Second)) {
		t.Fatal("claim should no longer be active")
	}

	if err := store.ExpireClaim(ctx, "missing", "admin", audit.TypeAdminResetAssignment, "", nil); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	unclaimed := testsupport.NewTask(t, store, "Never claimed")
	if err := store.ExpireClaim(ctx, unclaimed.ID, "admin", audit.TypeAdminResetAssignment, "", nil); !errors.Is(err, tasks.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed, got %v", err)
	}
}

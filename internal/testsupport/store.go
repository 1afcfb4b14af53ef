package testsupport

import (
	"context"
	"testing"
	"time"

	"clipline/internal/config"
	"clipline/internal/tasks"
)

// MustOpenStore opens a tasks.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tasks.Store {
	t.Helper()

	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("tasks.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a task for tests using the provided store.
func NewTask(t testing.TB, store *tasks.Store, title string) *tasks.Task {
	t.Helper()

	task, err := store.Create(context.Background(), title, "test")
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return task
}

// ClaimTask puts a one-hour claim on a task for the given holder and role.
func ClaimTask(t testing.TB, store *tasks.Store, taskID, holder string, role tasks.Role) *tasks.Task {
	t.Helper()

	now := time.Now().UTC()
	task, err := store.AcquireClaim(context.Background(), taskID, tasks.Claim{
		Holder:    holder,
		Role:      role,
		ClaimedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("store.AcquireClaim: %v", err)
	}
	return task
}

// NewLockedTask creates a task and attaches a payload so it is ready to
// move through the pipeline.
func NewLockedTask(t testing.TB, store *tasks.Store, title string) *tasks.Task {
	t.Helper()

	task := NewTask(t, store, title)
	task, err := store.AttachPayload(context.Background(), task.ID, "payload://"+task.ID, "test")
	if err != nil {
		t.Fatalf("store.AttachPayload: %v", err)
	}
	return task
}

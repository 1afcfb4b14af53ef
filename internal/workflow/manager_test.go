package workflow_test

import (
	"context"
	"testing"
	"time"

	"clipline/internal/audit"
	"clipline/internal/config"
	"clipline/internal/tasks"
	"clipline/internal/testsupport"
	"clipline/internal/workflow"
)

// recordingNotifier captures deliveries on channels so tests can wait for the
// startup sweeps without sleeping.
type recordingNotifier struct {
	reclaimed chan int64
	overdue   chan int
	errs      chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		reclaimed: make(chan int64, 8),
		overdue:   make(chan int, 8),
		errs:      make(chan string, 8),
	}
}

func (r *recordingNotifier) NotifyOverdueTasks(_ context.Context, count int, _ string, _ time.Duration) error {
	r.overdue <- count
	return nil
}

func (r *recordingNotifier) NotifyClaimsReclaimed(_ context.Context, count int64) error {
	r.reclaimed <- count
	return nil
}

func (r *recordingNotifier) NotifyStageAdvanced(context.Context, string, string, string) error {
	return nil
}
func (r *recordingNotifier) NotifyTaskRejected(context.Context, string, string) error { return nil }

func (r *recordingNotifier) NotifyError(_ context.Context, _ error, label string) error {
	r.errs <- label
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

// backdate rewrites a task's last stage change to the past so deadline math
// sees an aged task.
func backdate(t *testing.T, store *tasks.Store, task *tasks.Task, age time.Duration) {
	t.Helper()
	updated := *task
	updated.LastStatusChangedAt = time.Now().UTC().Add(-age)
	if _, err := store.CommitTransition(context.Background(), &updated, task.Stage, audit.Event{
		Type:  audit.TypeTransition,
		Actor: "test",
	}); err != nil {
		t.Fatalf("backdate task: %v", err)
	}
}

func newFixture(t *testing.T) (*config.Config, *tasks.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return cfg, store
}

func TestOverdueReportClassifiesTasks(t *testing.T) {
	cfg, store := newFixture(t)
	ctx := context.Background()

	// not_recorded deadline is 4h with a 2h due-soon window.
	testsupport.NewTask(t, store, "Fresh")
	dueSoon := testsupport.NewTask(t, store, "Due soon")
	backdate(t, store, dueSoon, 3*time.Hour)
	worst := testsupport.NewTask(t, store, "Long overdue")
	backdate(t, store, worst, 10*time.Hour)
	overdue := testsupport.NewTask(t, store, "Overdue")
	backdate(t, store, overdue, 5*time.Hour)

	manager := workflow.NewManagerWithNotifier(cfg, store, nil, newRecordingNotifier())
	report, err := manager.OverdueReport(ctx)
	if err != nil {
		t.Fatalf("OverdueReport failed: %v", err)
	}
	if report.Scanned != 4 {
		t.Fatalf("scanned = %d, want 4", report.Scanned)
	}
	if report.DueSoon != 1 {
		t.Fatalf("due soon = %d, want 1", report.DueSoon)
	}
	if report.Overdue != 2 {
		t.Fatalf("overdue = %d, want 2", report.Overdue)
	}
	if report.WorstTitle != "Long overdue" {
		t.Fatalf("worst = %q", report.WorstTitle)
	}
	if report.WorstAge < 9*time.Hour {
		t.Fatalf("worst age = %v", report.WorstAge)
	}
}

func TestStartupSweepsRunImmediately(t *testing.T) {
	cfg, store := newFixture(t)
	ctx := context.Background()

	task := testsupport.NewLockedTask(t, store, "Lapsed claim")
	past := time.Now().UTC().Add(-3 * time.Hour)
	if _, err := store.AcquireClaim(ctx, task.ID, tasks.Claim{
		Holder:    "rita",
		Role:      tasks.RoleRecorder,
		ClaimedAt: past,
		ExpiresAt: past.Add(time.Hour),
	}, ""); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	backdate(t, store, task, 6*time.Hour)

	notifier := newRecordingNotifier()
	manager := workflow.NewManagerWithNotifier(cfg, store, nil, notifier)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	select {
	case count := <-notifier.reclaimed:
		if count != 1 {
			t.Fatalf("reclaimed count = %d, want 1", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("startup reclaim sweep did not run")
	}

	select {
	case count := <-notifier.overdue:
		if count != 1 {
			t.Fatalf("overdue count = %d, want 1", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("startup overdue scan did not run")
	}

	cleared, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if cleared.Claim != nil {
		t.Fatalf("expired claim should be reclaimed, got %#v", cleared.Claim)
	}
}

func TestSweepFailuresReachNotifier(t *testing.T) {
	cfg, store := newFixture(t)

	// A closed store makes every sweep fail on its first pass.
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	notifier := newRecordingNotifier()
	manager := workflow.NewManagerWithNotifier(cfg, store, nil, notifier)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	labels := map[string]bool{}
	for len(labels) < 3 {
		select {
		case label := <-notifier.errs:
			labels[label] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("error notices missing, got %v", labels)
		}
	}
	for _, want := range []string{"claim reclaim", "stale claim sweep", "overdue scan"} {
		if !labels[want] {
			t.Fatalf("no error notice for %q, got %v", want, labels)
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg, store := newFixture(t)

	manager := workflow.NewManagerWithNotifier(cfg, store, nil, newRecordingNotifier())
	if manager.Running() {
		t.Fatal("manager must start stopped")
	}
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !manager.Running() {
		t.Fatal("manager should report running")
	}
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}

	manager.Stop()
	if manager.Running() {
		t.Fatal("manager should report stopped")
	}
	manager.Stop() // idempotent

	status := manager.Status()
	if status.Running {
		t.Fatal("status must reflect the stop")
	}
	if status.StartedAt.IsZero() {
		t.Fatal("status keeps the last start time")
	}
}

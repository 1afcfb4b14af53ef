package resolver_test

import (
	"testing"
	"time"

	"clipline/internal/resolver"
	"clipline/internal/tasks"
)

func TestResolveDecisionTable(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name   string
		task   tasks.Task
		key    resolver.ActionKey
		role   tasks.Role
		target tasks.Stage
	}{
		{
			name: "no payload",
			task: tasks.Task{Stage: tasks.StageNotRecorded},
			key:  resolver.ActionAddPayload,
			role: tasks.RoleRecorder,
		},
		{
			name:   "ready to record",
			task:   tasks.Task{Stage: tasks.StageNotRecorded, HasLockedPayload: true},
			key:    resolver.ActionRecord,
			role:   tasks.RoleRecorder,
			target: tasks.StageRecorded,
		},
		{
			name:   "ready to edit",
			task:   tasks.Task{Stage: tasks.StageRecorded, HasLockedPayload: true},
			key:    resolver.ActionEdit,
			role:   tasks.RoleEditor,
			target: tasks.StageEdited,
		},
		{
			name:   "ready to approve",
			task:   tasks.Task{Stage: tasks.StageEdited, HasLockedPayload: true},
			key:    resolver.ActionApprove,
			role:   tasks.RoleEditor,
			target: tasks.StageReadyToPost,
		},
		{
			name: "ready to post",
			task: tasks.Task{
				Stage:            tasks.StageReadyToPost,
				HasLockedPayload: true,
				Posting:          tasks.PostingInfo{URL: "https://example.invalid/v/1", Platform: "youtube"},
			},
			key:    resolver.ActionPost,
			role:   tasks.RoleUploader,
			target: tasks.StagePosted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action := resolver.Resolve(&tc.task, "anyone", now)
			if action.Key != tc.key {
				t.Fatalf("key = %s, want %s", action.Key, tc.key)
			}
			if action.Role != tc.role {
				t.Fatalf("role = %s, want %s", action.Role, tc.role)
			}
			if action.Target != tc.target {
				t.Fatalf("target = %s, want %s", action.Target, tc.target)
			}
			if !action.Enabled {
				t.Fatalf("expected enabled action, got %#v", action)
			}
		})
	}
}

func TestResolveTerminalStates(t *testing.T) {
	now := time.Now().UTC()

	posted := &tasks.Task{Stage: tasks.StagePosted, HasLockedPayload: true}
	action := resolver.Resolve(posted, "anyone", now)
	if action.Key != resolver.ActionDone || !action.Terminal {
		t.Fatalf("posted should resolve to done, got %#v", action)
	}

	rejected := &tasks.Task{Stage: tasks.StageRejected, HasLockedPayload: true}
	action = resolver.Resolve(rejected, "anyone", now)
	if action.Key != resolver.ActionBlocked || !action.Terminal {
		t.Fatalf("rejected should resolve to blocked, got %#v", action)
	}
	if action.Role != tasks.RoleAdmin {
		t.Fatalf("blocked tasks belong to admins, got %s", action.Role)
	}
}

func TestResolveDisabledWhenClaimedByOther(t *testing.T) {
	now := time.Now().UTC()
	task := &tasks.Task{
		Stage:            tasks.StageNotRecorded,
		HasLockedPayload: true,
		Claim: &tasks.Claim{
			Holder:    "rita",
			Role:      tasks.RoleRecorder,
			ClaimedAt: now,
			ExpiresAt: now.Add(time.Hour),
		},
	}

	other := resolver.Resolve(task, "sam", now)
	if other.Enabled {
		t.Fatalf("action should be disabled for non-holders, got %#v", other)
	}
	if other.Reason == "" {
		t.Fatal("disabled action should carry a reason")
	}

	holder := resolver.Resolve(task, "rita", now)
	if !holder.Enabled {
		t.Fatalf("holder should see an enabled action, got %#v", holder)
	}

	// An expired claim no longer blocks anyone.
	task.Claim.ExpiresAt = now.Add(-time.Minute)
	expired := resolver.Resolve(task, "sam", now)
	if !expired.Enabled {
		t.Fatalf("expired claim should not disable the action, got %#v", expired)
	}
}

func TestResolvePostDisabledWithoutPostingFields(t *testing.T) {
	now := time.Now().UTC()
	task := &tasks.Task{Stage: tasks.StageReadyToPost, HasLockedPayload: true}

	action := resolver.Resolve(task, "uma", now)
	if action.Key != resolver.ActionPost {
		t.Fatalf("expected post action, got %s", action.Key)
	}
	if action.Enabled {
		t.Fatal("post should be disabled until url and platform are present")
	}
}

func TestRequiredRole(t *testing.T) {
	role, ok := resolver.RequiredRole(&tasks.Task{Stage: tasks.StageRecorded, HasLockedPayload: true})
	if !ok || role != tasks.RoleEditor {
		t.Fatalf("RequiredRole = (%s, %v), want (editor, true)", role, ok)
	}

	if _, ok := resolver.RequiredRole(&tasks.Task{Stage: tasks.StagePosted, HasLockedPayload: true}); ok {
		t.Fatal("terminal stages have no required role")
	}
}

package daemon

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipline/internal/api"
	"clipline/internal/config"
	"clipline/internal/logging"
	"clipline/internal/testsupport"
	"clipline/internal/workflow"
)

// newTestAPI wires the full handler stack against a temp store without
// starting listeners or background loops.
func newTestAPI(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	wf := workflow.NewManager(cfg, store, logger)
	d, err := New(cfg, store, logger, wf)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if d.api == nil {
		t.Fatal("api server was not constructed")
	}

	server := httptest.NewServer(d.api.server.Handler)
	t.Cleanup(server.Close)
	return server, cfg
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
	actor string
	role  string
}

func (c *apiClient) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}
	if c.role != "" {
		req.Header.Set("X-Role", c.role)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		c.t.Fatalf("read response: %v", err)
	}
	return resp, buf.Bytes()
}

func (c *apiClient) as(actor, role string) *apiClient {
	clone := *c
	clone.actor = actor
	clone.role = role
	return &clone
}

func decodeItem(t *testing.T, raw []byte) api.TaskItem {
	t.Helper()
	var resp api.TaskItemResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode task response: %v (%s)", err, raw)
	}
	return resp.Item
}

func TestBearerTokenRequired(t *testing.T) {
	server, _ := newTestAPI(t, testsupport.WithAPIToken("sekrit"))

	anon := &apiClient{t: t, base: server.URL}
	resp, _ := anon.do(http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	wrong := &apiClient{t: t, base: server.URL, token: "nope"}
	resp, _ = wrong.do(http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}

	authed := &apiClient{t: t, base: server.URL, token: "sekrit"}
	resp, _ = authed.do(http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestProductionPathOverHTTP(t *testing.T) {
	server, _ := newTestAPI(t)
	client := &apiClient{t: t, base: server.URL}

	// Create.
	resp, raw := client.as("producer", "").do(http.MethodPost, "/api/tasks", map[string]any{"title": "Episode 7"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", resp.StatusCode, raw)
	}
	item := decodeItem(t, raw)
	if item.Stage != "not_recorded" {
		t.Fatalf("new task stage = %s", item.Stage)
	}
	taskPath := "/api/tasks/" + item.ID

	// Attach the payload.
	resp, raw = client.as("producer", "").do(http.MethodPost, taskPath+"/payload", map[string]any{"ref": "media://ep7"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payload: expected 200, got %d (%s)", resp.StatusCode, raw)
	}
	if item = decodeItem(t, raw); !item.HasLockedPayload {
		t.Fatal("payload attach did not lock the task")
	}

	// Recorder claims and records.
	rita := client.as("rita", "recorder")
	resp, raw = rita.do(http.MethodPost, taskPath+"/claim", map[string]any{"ttlMinutes": 30})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d (%s)", resp.StatusCode, raw)
	}
	if item = decodeItem(t, raw); item.Claim == nil || item.Claim.Holder != "rita" {
		t.Fatalf("claim not visible: %+v", item.Claim)
	}

	resp, raw = rita.do(http.MethodPost, taskPath+"/transition", map[string]any{
		"target":         "recorded",
		"recordingNotes": "single take",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition: expected 200, got %d (%s)", resp.StatusCode, raw)
	}
	if item = decodeItem(t, raw); item.Stage != "recorded" {
		t.Fatalf("stage after transition = %s", item.Stage)
	}

	resp, raw = rita.do(http.MethodPost, taskPath+"/release", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("release: expected 200, got %d (%s)", resp.StatusCode, raw)
	}
	if item = decodeItem(t, raw); item.Claim != nil {
		t.Fatalf("claim survived release: %+v", item.Claim)
	}

	// History shows every step.
	resp, raw = client.as("producer", "").do(http.MethodGet, taskPath+"/timeline", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeline: expected 200, got %d", resp.StatusCode)
	}
	var timeline api.TimelineResponse
	if err := json.Unmarshal(raw, &timeline); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	wantTypes := []string{"task_created", "payload_attached", "claimed", "transition", "released"}
	if len(timeline.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(timeline.Events))
	}
	for i, typ := range wantTypes {
		if timeline.Events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, timeline.Events[i].Type)
		}
	}

	// Queue filters by stage.
	resp, raw = client.as("producer", "").do(http.MethodGet, "/api/queue?stage=recorded", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("queue: expected 200, got %d", resp.StatusCode)
	}
	var list api.TaskListResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != item.ID {
		t.Fatalf("unexpected queue items: %+v", list.Items)
	}
}

func TestDomainErrorStatuses(t *testing.T) {
	server, _ := newTestAPI(t)
	client := &apiClient{t: t, base: server.URL}

	resp, _ := client.as("x", "").do(http.MethodGet, "/api/tasks/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown task: expected 404, got %d", resp.StatusCode)
	}

	// Seed a locked task.
	_, raw := client.as("producer", "").do(http.MethodPost, "/api/tasks", map[string]any{"title": "Contested"})
	item := decodeItem(t, raw)
	taskPath := "/api/tasks/" + item.ID
	client.as("producer", "").do(http.MethodPost, taskPath+"/payload", map[string]any{"ref": "media://c"})

	// Claim conflict.
	client.as("rita", "recorder").do(http.MethodPost, taskPath+"/claim", nil)
	resp, _ = client.as("sam", "recorder").do(http.MethodPost, taskPath+"/claim", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second claim: expected 409, got %d", resp.StatusCode)
	}

	// Wrong role for the current stage.
	resp, _ = client.as("ed", "editor").do(http.MethodPost, taskPath+"/transition", map[string]any{"target": "recorded"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong role: expected 403, got %d", resp.StatusCode)
	}

	// Missing rejection note maps to 422.
	resp, _ = client.as("rita", "recorder").do(http.MethodPost, taskPath+"/transition", map[string]any{"target": "rejected"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("rejection without note: expected 422, got %d", resp.StatusCode)
	}

	// Ordering violation maps to 422 too; admin role skips the role check but
	// not the ordering rule.
	resp, _ = client.as("rita", "admin").do(http.MethodPost, taskPath+"/transition", map[string]any{"target": "posted"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("skip ahead: expected 422, got %d", resp.StatusCode)
	}

	// Admin override without a reason.
	resp, _ = client.as("root", "").do(http.MethodPost, "/api/admin/tasks/"+item.ID+"/force-status", map[string]any{"target": "edited"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing reason: expected 400, got %d", resp.StatusCode)
	}

	// Unknown stage in the request itself.
	resp, _ = client.as("rita", "recorder").do(http.MethodPost, taskPath+"/transition", map[string]any{"target": "published"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown stage: expected 400, got %d", resp.StatusCode)
	}

	// Missing identity header.
	resp, _ = client.do(http.MethodPost, "/api/tasks", map[string]any{"title": "anon"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing actor: expected 400, got %d", resp.StatusCode)
	}
}

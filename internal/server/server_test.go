package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskgraph/internal/config"
	"taskgraph/internal/db"
	"taskgraph/internal/engine"
	"taskgraph/internal/migrate"
	taskgraphsdk "taskgraph/sdk/go"
)

type testEnv struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn)
	cfg := Config{Engine: e, CORSOrigins: []string{"*"}}
	if mutate != nil {
		mutate(&cfg)
	}
	handler, err := New(cfg)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return &testEnv{URL: srv.URL, Engine: e, client: srv.Client()}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		var b []byte
		switch v := body.(type) {
		case string:
			b = []byte(v)
		default:
			var err error
			b, err = json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeTask(t *testing.T, data []byte) TaskResponse {
	t.Helper()
	var out TaskResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal task: %v (%s)", err, data)
	}
	return out
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, data)
	}
	return env.Error.Code
}

func TestTaskCRUD(t *testing.T) {
	env := newTestServer(t, nil)
	client := env.client

	res, data := doJSON(t, client, http.MethodPost, env.URL+"/tasks/", map[string]any{
		"title":       "Plan release",
		"description": "collect changes",
		"parent_id":   nil,
		"status":      "todo",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	root := decodeTask(t, data)
	if root.ID != 1 || root.Status != "todo" || root.ParentID != nil {
		t.Fatalf("unexpected root task: %+v", root)
	}

	res, data = doJSON(t, client, http.MethodPost, env.URL+"/tasks", map[string]any{
		"title":     "Write notes",
		"parent_id": root.ID,
		"position":  map[string]float64{"x": 5, "y": 5},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create child status %d: %s", res.StatusCode, data)
	}
	child := decodeTask(t, data)
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Fatalf("child parent mismatch: %+v", child)
	}
	if child.Status != "todo" {
		t.Fatalf("default status = %q", child.Status)
	}
	if child.Position == nil || *child.Position != (PositionBody{X: 5, Y: 5}) {
		t.Fatalf("position not stored: %+v", child.Position)
	}

	res, data = doJSON(t, client, http.MethodGet, env.URL+"/tasks/", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, data)
	}
	var list []TaskResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 || list[0].ID != root.ID || list[1].ID != child.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	res, data = doJSON(t, client, http.MethodPut, env.URL+"/tasks/2", map[string]any{"status": "in_progress"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, data)
	}
	updated := decodeTask(t, data)
	if updated.Status != "in_progress" || updated.Title != "Write notes" || updated.ParentID == nil {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}

	res, data = doJSON(t, client, http.MethodDelete, env.URL+"/tasks/1", nil, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("delete parent status %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "conflict" {
		t.Fatalf("delete parent code %q", code)
	}

	res, data = doJSON(t, client, http.MethodPut, env.URL+"/tasks/2/", `{"parent_id": null}`, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("detach status %d: %s", res.StatusCode, data)
	}
	if detached := decodeTask(t, data); detached.ParentID != nil || detached.Status != "in_progress" {
		t.Fatalf("detach result: %+v", detached)
	}

	res, data = doJSON(t, client, http.MethodDelete, env.URL+"/tasks/1", nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodGet, env.URL+"/tasks/1", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("not found code %q", code)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestServer(t, nil)
	cases := map[string]any{
		"missing title":  map[string]any{"description": "no title"},
		"blank title":    map[string]any{"title": "   "},
		"bad status":     map[string]any{"title": "x", "status": "blocked"},
		"unknown parent": map[string]any{"title": "x", "parent_id": 42},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res, data := doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", body, nil)
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d: %s", res.StatusCode, data)
			}
			if code := errorCode(t, data); code != "bad_request" {
				t.Fatalf("code %q", code)
			}
		})
	}
}

func TestZeroParentMeansRoot(t *testing.T) {
	env := newTestServer(t, nil)
	res, data := doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "root", "parent_id": 0}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	if task := decodeTask(t, data); task.ParentID != nil {
		t.Fatalf("parent_id 0 stored as %v", *task.ParentID)
	}
}

func TestUpdateRejectsCycles(t *testing.T) {
	env := newTestServer(t, nil)
	for _, body := range []map[string]any{
		{"title": "a"},
		{"title": "b", "parent_id": 1},
		{"title": "c", "parent_id": 2},
	} {
		if res, data := doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", body, nil); res.StatusCode != http.StatusCreated {
			t.Fatalf("seed status %d: %s", res.StatusCode, data)
		}
	}
	res, data := doJSON(t, env.client, http.MethodPut, env.URL+"/tasks/1", map[string]any{"parent_id": 3}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("cycle status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, env.client, http.MethodPut, env.URL+"/tasks/1", map[string]any{"parent_id": 1}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("self parent status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, env.client, http.MethodPut, env.URL+"/tasks/99", map[string]any{"title": "x"}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task status %d: %s", res.StatusCode, data)
	}
}

func TestListWindow(t *testing.T) {
	env := newTestServer(t, func(c *Config) { c.DefaultLimit = 3 })
	for i := 0; i < 5; i++ {
		if res, data := doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "t"}, nil); res.StatusCode != http.StatusCreated {
			t.Fatalf("seed status %d: %s", res.StatusCode, data)
		}
	}
	ids := func(url string) []int64 {
		res, data := doJSON(t, env.client, http.MethodGet, url, nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list status %d: %s", res.StatusCode, data)
		}
		var list []TaskResponse
		if err := json.Unmarshal(data, &list); err != nil {
			t.Fatalf("unmarshal list: %v", err)
		}
		out := []int64{}
		for _, task := range list {
			out = append(out, task.ID)
		}
		return out
	}
	if got := ids(env.URL + "/tasks/"); len(got) != 3 || got[0] != 1 {
		t.Fatalf("default window = %v", got)
	}
	if got := ids(env.URL + "/tasks/?skip=2&limit=2"); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("skip window = %v", got)
	}
}

func TestBasePathAndHealth(t *testing.T) {
	env := newTestServer(t, func(c *Config) { c.BasePath = "/api" })
	res, data := doJSON(t, env.client, http.MethodGet, env.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
	if res.Header.Get(requestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
	res, _ = doJSON(t, env.client, http.MethodGet, env.URL+"/api/tasks/", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list under base path status %d", res.StatusCode)
	}
	res, data = doJSON(t, env.client, http.MethodGet, env.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/tasks") {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"http://localhost:3000"} })
	res, _ := doJSON(t, env.client, http.MethodOptions, env.URL+"/tasks/", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status %d", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
	res, _ = doJSON(t, env.client, http.MethodGet, env.URL+"/tasks/", nil, map[string]string{"Origin": "http://evil.test"})
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	env := newTestServer(t, func(c *Config) { c.Auth = AuthConfig{JWTSecret: secret} })

	res, data := doJSON(t, env.client, http.MethodGet, env.URL+"/tasks/", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status %d: %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, env.client, http.MethodGet, env.URL+"/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should skip auth, got %d", res.StatusCode)
	}
	bad, err := IssueToken("other-secret", "mallory", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, _ = doJSON(t, env.client, http.MethodGet, env.URL+"/tasks/", nil, map[string]string{"Authorization": "Bearer " + bad})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret status %d", res.StatusCode)
	}

	token, err := IssueToken(secret, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}
	res, data = doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "secured"}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("authorized create status %d: %s", res.StatusCode, data)
	}
	events, err := env.Engine.Repo.LatestEvents(context.Background(), 1, "", "", "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(events) != 1 || events[0].ActorID != "alice" || events[0].Type != "task.created" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSDKAgainstServer(t *testing.T) {
	env := newTestServer(t, nil)
	ctx := context.Background()
	client := taskgraphsdk.New(env.URL)

	if err := client.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	root, err := client.CreateTask(ctx, taskgraphsdk.TaskInput{Title: "root"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if root.Status != "todo" {
		t.Fatalf("status = %q", root.Status)
	}
	child, err := client.CreateTask(ctx, taskgraphsdk.TaskInput{Title: "child", ParentID: &root.ID, Status: "done"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	updated, err := client.UpdateTask(ctx, child.ID, taskgraphsdk.TaskInput{Title: "renamed", Status: "in_progress"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "renamed" || updated.ParentID != nil {
		t.Fatalf("full-body update should replace parent: %+v", updated)
	}
	if err := client.DeleteTask(ctx, 404); !taskgraphsdk.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var apiErr *taskgraphsdk.APIError
	_, err = client.CreateTask(ctx, taskgraphsdk.TaskInput{Title: " "})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "bad_request" {
		t.Fatalf("expected bad request api error, got %v", err)
	}
	tasks, err := client.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
}

func TestEventsEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "a"}, nil)
	doJSON(t, env.client, http.MethodPut, env.URL+"/tasks/1", map[string]any{"status": "done"}, nil)
	res, data := doJSON(t, env.client, http.MethodGet, env.URL+"/events?limit=10", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, data)
	}
	var events []EventResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) != 2 || events[0].Type != "task.updated" || events[1].Type != "task.created" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestWebhookDelivery(t *testing.T) {
	env := newTestServer(t, nil)
	var (
		mu       sync.Mutex
		received []webhookEvent
		sigs     []string
		bodies   [][]byte
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt webhookEvent
		_ = json.Unmarshal(body, &evt)
		mu.Lock()
		received = append(received, evt)
		sigs = append(sigs, r.Header.Get(signatureHeader))
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "before hook"}, nil)

	d := NewWebhookDispatcher(env.Engine.Repo, []config.WebhookConfig{
		{URL: hook.URL, Secret: "s3cret", Events: []string{"task.updated"}},
	}, nil)
	ctx := context.Background()
	d.DispatchOnce(ctx)

	doJSON(t, env.client, http.MethodPost, env.URL+"/tasks/", map[string]any{"title": "after hook"}, nil)
	doJSON(t, env.client, http.MethodPut, env.URL+"/tasks/2", map[string]any{"status": "done"}, nil)
	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d: %+v", len(received), received)
	}
	if received[0].Type != "task.updated" || received[0].EntityID != "2" {
		t.Fatalf("unexpected delivery: %+v", received[0])
	}
	if sigs[0] != Sign("s3cret", bodies[0]) {
		t.Fatalf("signature mismatch: %s", sigs[0])
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	env := newTestServer(t, nil)
	bodies := make([][]byte, 6)
	errs := make([]error, len(bodies))
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.client.Get(env.URL + "/openapi.json")
			if err != nil {
				errs[i] = err
				return
			}
			defer res.Body.Close()
			bodies[i], errs[i] = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for i := range bodies {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if !bytes.Equal(bodies[i], bodies[0]) || !bytes.Contains(bodies[i], []byte(`"/tasks"`)) {
			t.Fatalf("request %d returned a different document", i)
		}
	}
}

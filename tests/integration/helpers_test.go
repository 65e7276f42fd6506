// Package integration exercises the HTTP API end to end: a real SQLite
// backend, the task service, and the Echo routing tree, driven through
// an in-process test server.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/tasktree/internal/server"
	"github.com/mesh-intelligence/tasktree/internal/service"
	"github.com/mesh-intelligence/tasktree/internal/store"
	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// apiEnv is an isolated API instance backed by a temp-directory database.
type apiEnv struct {
	t       *testing.T
	backend *store.Backend
	srv     *httptest.Server
}

// startAPI builds the full stack on a fresh database and serves it from
// an httptest server. Each test gets its own instance for isolation.
func startAPI(t *testing.T) *apiEnv {
	t.Helper()

	backend := store.NewBackend()
	cfg := types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir()}
	if err := backend.Attach(cfg); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { backend.Detach() })

	svc := service.New(backend, nil, zerolog.Nop())
	srv := httptest.NewServer(server.New(svc, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	return &apiEnv{t: t, backend: backend, srv: srv}
}

// do sends a request with an optional JSON body and returns the status
// code and raw response body.
func (e *apiEnv) do(method, path string, body any) (int, []byte) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("reading response body: %v", err)
	}
	return resp.StatusCode, data
}

// decodeTask parses a single task response.
func decodeTask(t *testing.T, data []byte) *types.Task {
	t.Helper()
	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("parsing task from %q: %v", data, err)
	}
	return &task
}

// decodeTasks parses a task list response.
func decodeTasks(t *testing.T, data []byte) []*types.Task {
	t.Helper()
	var tasks []*types.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("parsing task list from %q: %v", data, err)
	}
	return tasks
}

// decodeError parses the uniform error body.
func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("parsing error from %q: %v", data, err)
	}
	return body.Error
}

// mustCreate creates a task over the API, optionally under a parent, and
// fails the test on any non-200 outcome.
func (e *apiEnv) mustCreate(title string, parentID *int64) *types.Task {
	e.t.Helper()

	path := "/tasks"
	if parentID != nil {
		path += "?parent=" + strconv.FormatInt(*parentID, 10)
	}
	status, body := e.do(http.MethodPost, path, map[string]any{"title": title})
	if status != http.StatusOK {
		e.t.Fatalf("creating %q: status %d, body %s", title, status, body)
	}
	return decodeTask(e.t, body)
}

// mustGet fetches a task by id and fails the test on any non-200 outcome.
func (e *apiEnv) mustGet(id int64) *types.Task {
	e.t.Helper()

	status, body := e.do(http.MethodGet, "/tasks/"+strconv.FormatInt(id, 10), nil)
	if status != http.StatusOK {
		e.t.Fatalf("fetching task %d: status %d, body %s", id, status, body)
	}
	return decodeTask(e.t, body)
}

// mustRoots fetches the root list and fails the test on any non-200 outcome.
func (e *apiEnv) mustRoots() []*types.Task {
	e.t.Helper()

	status, body := e.do(http.MethodGet, "/tasks", nil)
	if status != http.StatusOK {
		e.t.Fatalf("fetching roots: status %d, body %s", status, body)
	}
	return decodeTasks(e.t, body)
}

// childByID finds a direct child by id, or nil.
func childByID(task *types.Task, id int64) *types.Task {
	for _, c := range task.Childs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

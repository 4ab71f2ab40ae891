package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atf/internal/command"
	"atf/internal/parser"
	"atf/internal/shell"
	"atf/internal/task"
)

type memoryRepo struct {
	saved    []task.Task
	failSave bool
}

func (m *memoryRepo) Save(_ context.Context, tasks []task.Task) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saved = tasks
	return nil
}

func (m *memoryRepo) Load(context.Context) ([]task.Task, error) {
	if m.saved == nil {
		return nil, task.ErrNotFound
	}
	return m.saved, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result *resultResponse `json:"result"`
}

func newServer(t *testing.T, repo *memoryRepo) *Server {
	t.Helper()
	now := time.Date(2016, time.March, 15, 12, 0, 0, 0, time.UTC)
	e := command.NewEngine(repo, command.Options{
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})
	_, err := e.Load(context.Background())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := shell.NewSession(e, parser.New(time.UTC), shell.FilterAll, logger)
	return NewServer("127.0.0.1:0", s, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCommand_AddThenList(t *testing.T) {
	s := newServer(t, &memoryRepo{})

	rec := do(t, s, http.MethodPost, "/v1/commands", `{"line": "add \"pay rent\" by 2016-04-05 17:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[resultResponse](t, rec)
	assert.Equal(t, []string{`Added "pay rent".`}, res.Messages)

	rec = do(t, s, http.MethodGet, "/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[resultResponse](t, rec)
	require.Len(t, res.Tasks, 1)
	got := res.Tasks[0]
	assert.Equal(t, 1, got.Position)
	assert.Equal(t, "pay rent", got.Title)
	assert.Equal(t, "deadline", got.Category)
	require.NotNil(t, got.Timing.Start)
	assert.Equal(t, "2016-04-05T17:00:00Z", *got.Timing.Start)
	assert.Nil(t, got.Timing.End)
}

func TestCommand_RecurringTaskListsOccurrences(t *testing.T) {
	s := newServer(t, &memoryRepo{})

	rec := do(t, s, http.MethodPost, "/v1/commands", `{"line": "add sync from 2016-04-01 09:00 to 10:00 every 1 week times 3"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[resultResponse](t, rec)
	require.Len(t, res.Tasks, 1)
	assert.Len(t, res.Tasks[0].Occurrences, 3)
	assert.NotEmpty(t, res.Tasks[0].Interval)
}

func TestUndoRedo(t *testing.T) {
	s := newServer(t, &memoryRepo{})

	rec := do(t, s, http.MethodPost, "/v1/undo", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "history_empty", decode[errorBody](t, rec).Error.Code)

	do(t, s, http.MethodPost, "/v1/commands", `{"line": "add milk"}`)

	rec = do(t, s, http.MethodPost, "/v1/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[resultResponse](t, rec).Tasks)

	rec = do(t, s, http.MethodGet, "/v1/history", "")
	hist := decode[historyResponse](t, rec)
	assert.Empty(t, hist.Undo)
	assert.Len(t, hist.Redo, 1)

	rec = do(t, s, http.MethodPost, "/v1/redo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[resultResponse](t, rec).Tasks, 1)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t, &memoryRepo{})
	do(t, s, http.MethodPost, "/v1/commands", `{"line": "add milk"}`)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "empty line", body: `{"line": " "}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "syntax", body: `{"line": "frobnicate"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "index out of range", body: `{"line": "delete 9"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "quit", body: `{"line": "quit"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "save to path", body: `{"line": "save /tmp/x.db"}`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "load from path", body: `{"line": "load /tmp/x.db"}`, status: http.StatusBadRequest, code: "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/commands", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestPersistenceFailureKeepsResult(t *testing.T) {
	repo := &memoryRepo{}
	s := newServer(t, repo)
	repo.failSave = true

	rec := do(t, s, http.MethodPost, "/v1/commands", `{"line": "add milk"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, "persistence", body.Error.Code)
	require.NotNil(t, body.Result)
	require.Len(t, body.Result.Tasks, 1)
	assert.Equal(t, "milk", body.Result.Tasks[0].Title)
}

func TestListFilter(t *testing.T) {
	s := newServer(t, &memoryRepo{})
	do(t, s, http.MethodPost, "/v1/commands", `{"line": "add milk"}`)
	do(t, s, http.MethodPost, "/v1/commands", `{"line": "add eggs"}`)
	do(t, s, http.MethodPost, "/v1/commands", `{"line": "done 1"}`)

	rec := do(t, s, http.MethodGet, "/v1/tasks?filter=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[resultResponse](t, rec).Tasks, 1)

	rec = do(t, s, http.MethodGet, "/v1/tasks?filter=all", "")
	assert.Len(t, decode[resultResponse](t, rec).Tasks, 2)

	rec = do(t, s, http.MethodGet, "/v1/tasks?filter=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoad(t *testing.T) {
	repo := &memoryRepo{}
	s := newServer(t, repo)
	do(t, s, http.MethodPost, "/v1/commands", `{"line": "add milk"}`)

	rec := do(t, s, http.MethodPost, "/v1/load", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[resultResponse](t, rec)
	assert.Equal(t, []string{"Loaded 1 tasks."}, res.Messages)

	rec = do(t, s, http.MethodPost, "/v1/undo", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

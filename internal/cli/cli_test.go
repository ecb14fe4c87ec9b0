package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sadopc/taskdeck/internal/api"
	"github.com/sadopc/taskdeck/internal/api/apitest"
	"github.com/sadopc/taskdeck/internal/config"
	"github.com/sadopc/taskdeck/internal/model"
	"github.com/sadopc/taskdeck/internal/store"
	"github.com/sadopc/taskdeck/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	*environment
	server *apitest.Server
	out    *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	server := apitest.NewServer(t)

	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	out := &bytes.Buffer{}
	cfg := &config.Config{APIURL: server.URL, RequestTimeout: 5 * time.Second, DBPath: ":memory:"}
	client := api.New(server.URL, st, api.WithTimeout(cfg.RequestTimeout))
	log := zerolog.Nop()

	return &testEnv{
		environment: &environment{
			cfg:    cfg,
			log:    log,
			store:  st,
			client: client,
			tasks: tasks.NewStore(client,
				tasks.WithNotifier(tasks.Notifiers{recordNotices(st, log), printNotices(out)}),
			),
		},
		server: server,
		out:    out,
	}
}

// signIn registers a user with the fake server and stores a fresh token.
func (e *testEnv) signIn(t *testing.T) model.User {
	t.Helper()
	u := e.server.AddUser("ada@example.com", "secret1")
	require.NoError(t, e.store.SetToken(e.server.Token(u, time.Hour)))
	require.NoError(t, e.store.SetUser(u.ID, u.Email))
	return u
}

func at(days int) model.Timestamp {
	return model.Timestamp{Time: time.Now().UTC().AddDate(0, 0, -days)}
}

// ============================================================
// Auth
// ============================================================

func TestLoginAndWhoami(t *testing.T) {
	e := newTestEnv(t)
	u := e.server.AddUser("ada@example.com", "secret1")
	ctx := context.Background()

	require.NoError(t, login(ctx, e.environment, e.out, "  ada@example.com ", "secret1"))
	assert.Contains(t, e.out.String(), "Signed in as ada@example.com")

	sess, err := e.store.GetSession()
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)
	assert.NotEmpty(t, sess.Token)

	e.out.Reset()
	require.NoError(t, whoami(ctx, e.environment, e.out))
	assert.Equal(t, "ada@example.com ("+u.ID+")\n", e.out.String())
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.server.AddUser("ada@example.com", "secret1")

	err := login(context.Background(), e.environment, e.out, "ada@example.com", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect email or password")

	tok, _ := e.store.Token()
	assert.Empty(t, tok)
}

func TestLoginValidatesLocally(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, login(ctx, e.environment, e.out, "not-an-email", "secret1"), api.ErrInvalidEmail)
	assert.ErrorIs(t, login(ctx, e.environment, e.out, "ada@example.com", ""), api.ErrMissingCredentials)
	assert.Zero(t, e.server.Calls(http.MethodPost, "/auth/login"))
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t)

	err := register(context.Background(), e.environment, e.out, "new@example.com", "secret1", "secret1")
	require.NoError(t, err)
	assert.Contains(t, e.out.String(), "Account created for new@example.com")
	assert.Contains(t, e.out.String(), "Signed in as new@example.com")
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, register(ctx, e.environment, e.out, "a@b.co", "secret1", "secret2"), api.ErrPasswordMismatch)
	assert.ErrorIs(t, register(ctx, e.environment, e.out, "a@b.co", "abc", "abc"), api.ErrShortPassword)
	assert.Zero(t, e.server.Calls(http.MethodPost, "/auth/register"))
}

func TestRegisterDuplicate(t *testing.T) {
	e := newTestEnv(t)
	e.server.AddUser("ada@example.com", "secret1")

	err := register(context.Background(), e.environment, e.out, "ada@example.com", "secret1", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email already registered")
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	require.NoError(t, logout(e.environment, e.out))
	assert.Contains(t, e.out.String(), "Signed out")

	err := requireSession(e.environment)
	assert.ErrorIs(t, err, api.ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "taskdeck login")
}

func TestRequireSessionExpiredToken(t *testing.T) {
	e := newTestEnv(t)
	u := e.server.AddUser("ada@example.com", "secret1")
	require.NoError(t, e.store.SetToken(e.server.Token(u, -time.Minute)))

	err := requireSession(e.environment)
	assert.ErrorIs(t, err, api.ErrSessionExpired)

	tok, _ := e.store.Token()
	assert.Empty(t, tok, "expired token should be cleared")
	assert.Zero(t, e.server.Calls(http.MethodGet, "/user/profile"))
}

func TestSessionHint(t *testing.T) {
	assert.Nil(t, sessionHint(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, sessionHint(plain))

	unauthorized := &api.Error{StatusCode: http.StatusUnauthorized, Message: "Could not validate credentials"}
	assert.Contains(t, sessionHint(unauthorized).Error(), "login` again")
	assert.True(t, api.IsStatus(sessionHint(unauthorized), http.StatusUnauthorized))
}

// ============================================================
// Tasks
// ============================================================

func seedTasks(t *testing.T, e *testEnv) model.User {
	t.Helper()
	u := e.signIn(t)
	e.server.SetTasks(u,
		model.Task{ID: "aaaa1111-0000", Title: "Write report", CreatedAt: at(0), UpdatedAt: at(0)},
		model.Task{ID: "bbbb2222-0000", Title: "Buy milk", Description: "semi-skimmed", IsCompleted: true, CreatedAt: at(1), UpdatedAt: at(0)},
		model.Task{ID: "cccc3333-0000", Title: "Call plumber", CreatedAt: at(10), UpdatedAt: at(10)},
	)
	return u
}

func TestListTasksTable(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)

	err := listTasks(context.Background(), e.environment, e.out, listOptions{sort: tasks.SortCreated}, time.Now())
	require.NoError(t, err)

	out := e.out.String()
	for _, want := range []string{"Write report", "Buy milk", "Call plumber", "aaaa1111", "[x]", "Yesterday"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "aaaa1111-0000", "ids are shortened")
}

func TestListTasksFilterAndStatus(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)
	ctx := context.Background()

	require.NoError(t, listTasks(ctx, e.environment, e.out, listOptions{filter: "SKIMMED", sort: tasks.SortCreated}, time.Now()))
	assert.Contains(t, e.out.String(), "Buy milk")
	assert.NotContains(t, e.out.String(), "Write report")

	e.out.Reset()
	require.NoError(t, listTasks(ctx, e.environment, e.out, listOptions{status: "pending", sort: tasks.SortCreated}, time.Now()))
	assert.NotContains(t, e.out.String(), "Buy milk")
	assert.Contains(t, e.out.String(), "Call plumber")

	e.out.Reset()
	require.NoError(t, listTasks(ctx, e.environment, e.out, listOptions{filter: "zzz", sort: tasks.SortCreated}, time.Now()))
	assert.Contains(t, e.out.String(), "No tasks found.")

	err := listTasks(ctx, e.environment, e.out, listOptions{status: "maybe", sort: tasks.SortCreated}, time.Now())
	assert.ErrorContains(t, err, "unknown status")
}

func TestListTasksJSONSorted(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)

	opts := listOptions{sort: tasks.SortTitle, asc: true, json: true}
	require.NoError(t, listTasks(context.Background(), e.environment, e.out, opts, time.Now()))

	var got []model.Task
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Buy milk", "Call plumber", "Write report"},
		[]string{got[0].Title, got[1].Title, got[2].Title})
}

func TestListTasksUnauthorized(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)
	e.server.FailNext(http.MethodGet, "/api/tasks", http.StatusUnauthorized, "Could not validate credentials")

	err := listTasks(context.Background(), e.environment, e.out, listOptions{sort: tasks.SortCreated}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run `taskdeck login` again")
}

func TestAddTask(t *testing.T) {
	e := newTestEnv(t)
	u := e.signIn(t)

	require.NoError(t, addTask(context.Background(), e.environment, e.out, "  Water plants ", "ferns first"))

	got := e.server.Tasks(u)
	require.Len(t, got, 1)
	assert.Equal(t, "Water plants", got[0].Title)
	assert.Equal(t, "ferns first", got[0].Description)
	assert.Contains(t, e.out.String(), "✓ Task created successfully!")
	assert.Contains(t, e.out.String(), shortID(got[0].ID))
}

func TestAddTaskEmptyTitle(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	err := addTask(context.Background(), e.environment, e.out, "   ", "")
	assert.ErrorIs(t, err, tasks.ErrEmptyTitle)
	assert.Zero(t, e.server.Calls(http.MethodPost, "/api/tasks"))
	assert.NotContains(t, e.out.String(), "✓", "failures are not echoed as notices")
}

func TestEditTaskByPrefix(t *testing.T) {
	e := newTestEnv(t)
	u := seedTasks(t, e)

	title := "Call the plumber"
	require.NoError(t, editTask(context.Background(), e.environment, "cccc", model.Patch{Title: &title}))

	for _, task := range e.server.Tasks(u) {
		if task.ID == "cccc3333-0000" {
			assert.Equal(t, title, task.Title)
		}
	}
	assert.Contains(t, e.out.String(), "Task updated successfully!")
}

func TestEditTaskNothingToChange(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)

	err := editTask(context.Background(), e.environment, "cccc", model.Patch{})
	assert.ErrorIs(t, err, tasks.ErrEmptyPatch)
	assert.Zero(t, e.server.Calls(http.MethodPut, "/api/tasks/cccc3333-0000"))
}

func TestToggleTask(t *testing.T) {
	e := newTestEnv(t)
	u := seedTasks(t, e)
	ctx := context.Background()

	require.NoError(t, toggleTask(ctx, e.environment, "aaaa"))
	assert.Contains(t, e.out.String(), "Task marked as completed!")
	assert.True(t, e.server.Tasks(u)[0].IsCompleted)

	e.out.Reset()
	require.NoError(t, toggleTask(ctx, e.environment, "aaaa1111-0000"))
	assert.Contains(t, e.out.String(), "Task marked as incomplete!")
	assert.False(t, e.server.Tasks(u)[0].IsCompleted)
}

func TestDeleteTask(t *testing.T) {
	e := newTestEnv(t)
	u := seedTasks(t, e)
	ctx := context.Background()

	task, err := resolveTask(ctx, e.environment, "bbbb")
	require.NoError(t, err)
	require.NoError(t, deleteTask(ctx, e.environment, task.ID))

	assert.Len(t, e.server.Tasks(u), 2)
	_, err = e.tasks.Task(task.ID)
	assert.ErrorIs(t, err, tasks.ErrUnknownTask)
}

func TestDeleteTaskServerError(t *testing.T) {
	e := newTestEnv(t)
	u := seedTasks(t, e)
	e.server.FailNext(http.MethodDelete, "/api/tasks/bbbb2222-0000", http.StatusInternalServerError, "db down")

	err := deleteTask(context.Background(), e.environment, "bbbb2222-0000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, e.server.Tasks(u), 3)
}

func TestResolveTask(t *testing.T) {
	e := newTestEnv(t)
	u := e.signIn(t)
	e.server.SetTasks(u,
		model.Task{ID: "abc-1", Title: "one"},
		model.Task{ID: "abc-2", Title: "two"},
	)
	ctx := context.Background()

	got, err := resolveTask(ctx, e.environment, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Title)

	_, err = resolveTask(ctx, e.environment, "abc")
	assert.ErrorContains(t, err, "matches 2 tasks")

	_, err = resolveTask(ctx, e.environment, "zzz")
	assert.ErrorIs(t, err, tasks.ErrUnknownTask)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("1234567890"))
}

// ============================================================
// Stats and export
// ============================================================

func TestShowStats(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)

	require.NoError(t, showStats(context.Background(), e.environment, e.out, time.Now(), false))
	out := e.out.String()
	assert.Contains(t, out, "Total 3  Completed 1  Pending 2  Productivity 33%")
	assert.Contains(t, out, "Keep going!")
}

func TestShowStatsJSON(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)
	now := time.Now()

	require.NoError(t, showStats(context.Background(), e.environment, e.out, now, true))

	var rep statsReport
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &rep))
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 33, rep.CompletionRate)
	require.Len(t, rep.Days, 7)
	assert.Equal(t, now.Format("2006-01-02"), rep.Days[6].Date)
	assert.Equal(t, 1, rep.Days[6].Completed)
}

func TestExportTasks(t *testing.T) {
	e := newTestEnv(t)
	seedTasks(t, e)
	dir := t.TempDir()
	ctx := context.Background()

	csvPath := filepath.Join(dir, "tasks.csv")
	require.NoError(t, exportTasks(ctx, e.environment, e.out, "csv", csvPath, time.Now()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Buy milk")
	assert.Contains(t, e.out.String(), "Exported 3 tasks to "+csvPath)

	jsonPath := filepath.Join(dir, "tasks.json")
	require.NoError(t, exportTasks(ctx, e.environment, e.out, "json", jsonPath, time.Now()))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	assert.ErrorContains(t, exportTasks(ctx, e.environment, e.out, "xml", "", time.Now()), "unknown format")
}

func TestExportPath(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	p, err := exportPath("json", now)
	require.NoError(t, err)
	assert.Equal(t, "taskdeck-export-2025-03-14.json", filepath.Base(p))
}

// ============================================================
// Notifications, config
// ============================================================

func TestListNotifications(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	require.NoError(t, listNotifications(e.store, e.out, 10, time.Now()))
	assert.Contains(t, e.out.String(), "You're all caught up.")

	require.NoError(t, addTask(context.Background(), e.environment, &bytes.Buffer{}, "Plan trip", ""))
	_ = addTask(context.Background(), e.environment, &bytes.Buffer{}, "", "")

	e.out.Reset()
	require.NoError(t, listNotifications(e.store, e.out, 10, time.Now()))
	out := e.out.String()
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "Task created successfully!")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, tasks.ErrEmptyTitle.Error())

	unread, err := e.store.UnreadCount()
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestWriteConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 15 * time.Second,
		DBPath:         "/tmp/taskdeck.db",
		LogLevel:       "debug",
	}
	require.NoError(t, writeConfig(&buf, cfg))

	out := buf.String()
	assert.Contains(t, out, "api_url: http://localhost:8000")
	assert.Contains(t, out, "request_timeout: 15s")
	assert.Contains(t, out, "log_level: debug")
}

func TestPrintSettings(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.SetSetting("sort_field", "title"))

	require.NoError(t, printSettings(e.store, e.out))
	assert.True(t, strings.Contains(e.out.String(), "sort_field") && strings.Contains(e.out.String(), "title"))
}

func TestPrintNoticesSkipsErrors(t *testing.T) {
	var buf bytes.Buffer
	n := printNotices(&buf)
	n.Notify(tasks.Notice{Level: tasks.LevelError, Message: "bad"})
	n.Notify(tasks.Notice{Level: tasks.LevelSuccess, Message: "good"})
	assert.Equal(t, "✓ good\n", buf.String())
}

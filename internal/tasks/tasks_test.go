package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sadopc/taskdeck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func ts(t time.Time) model.Timestamp { return model.Timestamp{Time: t} }

var errServer = errors.New("server unavailable")

// fakeClient serves tasks from memory. Gates, when set, hold a call until
// they are closed.
type fakeClient struct {
	mu    sync.Mutex
	tasks []model.Task
	fail  map[string]error // by op: list, create, update, complete, delete

	listGate      chan struct{}
	createGate    chan struct{}
	createStarted chan struct{}
	completeTo    *bool // forces the server's toggle result

	listCalls   atomic.Int32
	createCalls atomic.Int32
	nextID      int
}

func newFake(tasks ...model.Task) *fakeClient {
	return &fakeClient{tasks: tasks, fail: map[string]error{}}
}

func (f *fakeClient) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *fakeClient) ListTasks(context.Context) ([]model.Task, error) {
	f.listCalls.Add(1)
	if f.listGate != nil {
		<-f.listGate
	}
	if err := f.err("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeClient) CreateTask(_ context.Context, d model.Draft) (model.Task, error) {
	f.createCalls.Add(1)
	if f.createStarted != nil {
		close(f.createStarted)
	}
	if f.createGate != nil {
		<-f.createGate
	}
	if err := f.err("create"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := model.Task{ID: "new-" + string(rune('0'+f.nextID)), Title: d.Title, Description: d.Description,
		CreatedAt: ts(fixedNow), UpdatedAt: ts(fixedNow)}
	f.tasks = append([]model.Task{t}, f.tasks...)
	return t, nil
}

func (f *fakeClient) find(id string) int {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeClient) UpdateTask(_ context.Context, id string, p model.Patch) (model.Task, error) {
	if err := f.err("update"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return model.Task{}, errors.New("Task not found")
	}
	if p.Title != nil {
		f.tasks[i].Title = *p.Title
	}
	if p.Description != nil {
		f.tasks[i].Description = *p.Description
	}
	f.tasks[i].UpdatedAt = ts(fixedNow)
	return f.tasks[i], nil
}

func (f *fakeClient) CompleteTask(_ context.Context, id string) (model.Task, error) {
	if err := f.err("complete"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return model.Task{}, errors.New("Task not found")
	}
	if f.completeTo != nil {
		f.tasks[i].IsCompleted = *f.completeTo
	} else {
		f.tasks[i].IsCompleted = !f.tasks[i].IsCompleted
	}
	f.tasks[i].UpdatedAt = ts(fixedNow)
	return f.tasks[i], nil
}

func (f *fakeClient) DeleteTask(_ context.Context, id string) error {
	if err := f.err("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(id); i >= 0 {
		f.tasks = append(f.tasks[:i:i], f.tasks[i+1:]...)
	}
	return nil
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func sample() []model.Task {
	return []model.Task{
		{ID: "a", Title: "Write report", CreatedAt: ts(fixedNow.Add(-time.Hour))},
		{ID: "b", Title: "Buy milk", IsCompleted: true, CreatedAt: ts(fixedNow.Add(-2 * time.Hour))},
	}
}

func newTestStore(t *testing.T, c *fakeClient) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewStore(c, WithNotifier(rec), WithClock(func() time.Time { return fixedNow }))
	return s, rec
}

func loaded(t *testing.T, c *fakeClient) (*Store, *recorder) {
	t.Helper()
	s, rec := newTestStore(t, c)
	require.NoError(t, s.Fetch(context.Background()))
	return s, rec
}

func titles(ts []model.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

// ============================================================
// Fetch
// ============================================================

func TestFetchReplacesSnapshot(t *testing.T) {
	c := newFake(sample()...)
	s, _ := newTestStore(t, c)

	before := s.Snapshot()
	assert.False(t, before.Loaded)
	assert.Empty(t, before.Tasks)

	require.NoError(t, s.Fetch(context.Background()))
	snap := s.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Loading)
	assert.Equal(t, []string{"Write report", "Buy milk"}, titles(snap.Tasks))
	assert.Equal(t, fixedNow, snap.FetchedAt)
	assert.Greater(t, snap.Version, before.Version)
}

func TestFetchErrorKeepsSnapshot(t *testing.T) {
	c := newFake(sample()...)
	s, rec := loaded(t, c)
	version := s.Snapshot().Version

	c.fail["list"] = errServer
	err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, errServer)

	snap := s.Snapshot()
	assert.Len(t, snap.Tasks, 2, "stale tasks stay visible")
	assert.ErrorIs(t, snap.Err, errServer)
	assert.Equal(t, version, snap.Version)
	assert.Equal(t, LevelError, rec.last().Level)

	delete(c.fail, "list")
	require.NoError(t, s.Fetch(context.Background()))
	assert.NoError(t, s.Snapshot().Err)
}

func TestFetchEmptyListIsLoaded(t *testing.T) {
	s, _ := loaded(t, newFake())
	snap := s.Snapshot()
	assert.True(t, snap.Loaded)
	assert.NotNil(t, snap.Tasks)
	assert.Empty(t, snap.Tasks)
}

func TestFetchSharesOneRequest(t *testing.T) {
	c := newFake(sample()...)
	c.listGate = make(chan struct{})
	s, _ := newTestStore(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Fetch(context.Background()))
		}()
	}
	require.Eventually(t, func() bool { return c.listCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(c.listGate)
	wg.Wait()

	assert.Equal(t, int32(1), c.listCalls.Load())
}

func TestFetchCallerCancel(t *testing.T) {
	c := newFake(sample()...)
	c.listGate = make(chan struct{})
	defer close(c.listGate)
	s, _ := newTestStore(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Fetch(ctx), context.Canceled)
}

func TestFetchWaitsForMutation(t *testing.T) {
	c := newFake(sample()...)
	s, _ := loaded(t, c)
	c.createGate = make(chan struct{})
	c.createStarted = make(chan struct{})

	created := make(chan error, 1)
	go func() {
		_, err := s.Create(context.Background(), model.Draft{Title: "Plan trip"})
		created <- err
	}()
	<-c.createStarted

	fetched := make(chan error, 1)
	go func() { fetched <- s.Fetch(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), c.listCalls.Load(), "fetch must not start while a mutation is in flight")

	close(c.createGate)
	require.NoError(t, <-created)
	require.NoError(t, <-fetched)
	assert.Equal(t, int32(2), c.listCalls.Load())
	assert.Equal(t, "Plan trip", s.Snapshot().Tasks[0].Title)
}

// ============================================================
// Mutations
// ============================================================

func TestCreatePrepends(t *testing.T) {
	c := newFake(sample()...)
	s, rec := loaded(t, c)

	got, err := s.Create(context.Background(), model.Draft{Title: "  Plan trip  ", Description: "train"})
	require.NoError(t, err)
	assert.Equal(t, "Plan trip", got.Title)

	snap := s.Snapshot()
	assert.Equal(t, []string{"Plan trip", "Write report", "Buy milk"}, titles(snap.Tasks))
	assert.Equal(t, PhaseCommitted, s.State(got.ID).Phase)
	assert.Equal(t, Notice{Level: LevelSuccess, Message: "Task created successfully!", TaskID: got.ID, At: fixedNow}, rec.last())
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	c := newFake(sample()...)
	s, rec := loaded(t, c)

	_, err := s.Create(context.Background(), model.Draft{Title: "   "})
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.True(t, IsValidation(err))

	long := make([]rune, model.MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.Create(context.Background(), model.Draft{Title: string(long)})
	assert.ErrorIs(t, err, ErrTitleTooLong)

	assert.Zero(t, c.createCalls.Load())
	assert.Len(t, s.Snapshot().Tasks, 2)
	assert.Equal(t, LevelError, rec.last().Level)
}

func TestCreateFailureLeavesSnapshot(t *testing.T) {
	c := newFake(sample()...)
	s, rec := loaded(t, c)
	before := s.Snapshot()

	c.fail["create"] = errServer
	_, err := s.Create(context.Background(), model.Draft{Title: "Plan trip"})
	assert.ErrorIs(t, err, errServer)
	assert.False(t, IsValidation(err))

	after := s.Snapshot()
	assert.Equal(t, before.Tasks, after.Tasks)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, Notice{Level: LevelError, Message: errServer.Error(), At: fixedNow}, rec.last())
}

func TestUpdateReplacesEntry(t *testing.T) {
	c := newFake(sample()...)
	s, rec := loaded(t, c)

	title := "Write the report"
	got, err := s.Update(context.Background(), "a", model.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	task, err := s.Task("a")
	require.NoError(t, err)
	assert.Equal(t, title, task.Title)
	assert.Equal(t, "Task updated successfully!", rec.last().Message)
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	s, _ := loaded(t, newFake(sample()...))
	_, err := s.Update(context.Background(), "a", model.Patch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	blank := " "
	_, err = s.Update(context.Background(), "a", model.Patch{Title: &blank})
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestUpdateFailureMarksTask(t *testing.T) {
	c := newFake(sample()...)
	s, _ := loaded(t, c)
	c.fail["update"] = errServer

	title := "x"
	_, err := s.Update(context.Background(), "a", model.Patch{Title: &title})
	require.Error(t, err)

	st := s.State("a")
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, "update", st.Op)
	assert.ErrorIs(t, st.Err, errServer)

	task, _ := s.Task("a")
	assert.Equal(t, "Write report", task.Title)
}

func TestDeleteRemoves(t *testing.T) {
	s, rec := loaded(t, newFake(sample()...))

	require.NoError(t, s.Delete(context.Background(), "a"))
	assert.Equal(t, []string{"Buy milk"}, titles(s.Snapshot().Tasks))
	assert.Equal(t, PhaseIdle, s.State("a").Phase)
	assert.Equal(t, "Task deleted successfully!", rec.last().Message)

	_, err := s.Task("a")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestDeleteFailureKeepsTask(t *testing.T) {
	c := newFake(sample()...)
	s, _ := loaded(t, c)
	c.fail["delete"] = errServer

	assert.ErrorIs(t, s.Delete(context.Background(), "a"), errServer)
	assert.Len(t, s.Snapshot().Tasks, 2)
	assert.Equal(t, PhaseFailed, s.State("a").Phase)
}

func TestToggleCompletion(t *testing.T) {
	s, rec := loaded(t, newFake(sample()...))
	before, _ := s.Task("a")

	got, err := s.ToggleCompletion(context.Background(), "a", true)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, "Task marked as completed!", rec.last().Message)

	after, _ := s.Task("a")
	assert.True(t, after.IsCompleted)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt.Time))

	got, err = s.Toggle(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, "Task marked as incomplete!", rec.last().Message)
}

func TestToggleServerWins(t *testing.T) {
	c := newFake(sample()...)
	s, _ := loaded(t, c)
	stay := false
	c.completeTo = &stay

	got, err := s.ToggleCompletion(context.Background(), "a", true)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)

	task, _ := s.Task("a")
	assert.False(t, task.IsCompleted, "local state follows the server")
}

func TestToggleUnknownTask(t *testing.T) {
	s, rec := loaded(t, newFake(sample()...))
	n := rec.count()

	_, err := s.Toggle(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Equal(t, n, rec.count())
}

func TestReset(t *testing.T) {
	s, _ := loaded(t, newFake(sample()...))
	s.Reset()

	snap := s.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.False(t, snap.Loaded)
	assert.True(t, snap.FetchedAt.IsZero())
}

func TestNotifiersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Notifiers{a, nil, b}.Notify(Notice{Message: "hi"})
	assert.Equal(t, "hi", a.last().Message)
	assert.Equal(t, "hi", b.last().Message)
}

func TestLevelRoundTrip(t *testing.T) {
	assert.Equal(t, LevelError, ParseLevel(LevelError.String()))
	assert.Equal(t, LevelSuccess, ParseLevel(LevelSuccess.String()))
	assert.Equal(t, "pending", PhasePending.String())
}

// ============================================================
// Views
// ============================================================

func TestFilter(t *testing.T) {
	list := []model.Task{
		{ID: "1", Title: "Buy MILK"},
		{ID: "2", Title: "Call", Description: "the milkman"},
		{ID: "3", Title: "Read"},
	}
	assert.Len(t, Filter(list, ""), 3)
	assert.Equal(t, []string{"Buy MILK", "Call"}, titles(Filter(list, " milk ")))
	assert.Empty(t, Filter(list, "zzz"))
}

func TestSort(t *testing.T) {
	list := []model.Task{
		{ID: "1", Title: "b", CreatedAt: ts(fixedNow.Add(-3 * time.Hour)), UpdatedAt: ts(fixedNow), IsCompleted: true},
		{ID: "2", Title: "A", CreatedAt: ts(fixedNow.Add(-1 * time.Hour)), UpdatedAt: ts(fixedNow.Add(-5 * time.Hour))},
		{ID: "3", Title: "c", CreatedAt: ts(fixedNow.Add(-2 * time.Hour)), UpdatedAt: ts(fixedNow.Add(-1 * time.Hour))},
	}
	assert.Equal(t, []string{"A", "c", "b"}, titles(Sort(list, SortCreated, true)))
	assert.Equal(t, []string{"b", "c", "A"}, titles(Sort(list, SortCreated, false)))
	assert.Equal(t, []string{"A", "b", "c"}, titles(Sort(list, SortTitle, false)))
	assert.Equal(t, []string{"b", "c", "A"}, titles(Sort(list, SortUpdated, true)))
	assert.Equal(t, []string{"A", "c", "b"}, titles(Sort(list, SortCompleted, false)), "ties keep order")

	assert.Equal(t, "1", list[0].ID, "input untouched")
}

func TestParseSortField(t *testing.T) {
	for _, f := range SortFields {
		got, err := ParseSortField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseSortField("priority")
	assert.Error(t, err)
}

func TestAge(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{fixedNow.Add(-time.Hour), "Today"},
		{fixedNow.Add(-24 * time.Hour), "Yesterday"},
		{fixedNow.Add(-3 * 24 * time.Hour), "3 days ago"},
		{fixedNow.Add(-6 * 24 * time.Hour), "6 days ago"},
		{fixedNow.Add(-7 * 24 * time.Hour), "Mar 7"},
		{fixedNow.Add(time.Hour), "Today"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Age(ts(tt.at), fixedNow), tt.at.String())
	}
	assert.Equal(t, "-", Age(model.Timestamp{}, fixedNow))

	// 23:30 the previous evening is Yesterday even though under 24h ago.
	now := time.Date(2025, 3, 14, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, "Yesterday", Age(ts(now.Add(-time.Hour)), now))
}

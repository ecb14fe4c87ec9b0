// Package tasks keeps a local mirror of the signed-in user's tasks in step
// with the task API. Local state changes only after the server confirms.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/sadopc/taskdeck/internal/model"
)

// Client is the part of the API client the store needs.
type Client interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, d model.Draft) (model.Task, error)
	UpdateTask(ctx context.Context, id string, p model.Patch) (model.Task, error)
	CompleteTask(ctx context.Context, id string) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// gateWeight is the semaphore size. Mutations take 1, a fetch takes all
// of it, so a fetch runs alone and only after in-flight mutations land.
const gateWeight = 64

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Tasks     []model.Task
	Err       error // last fetch error, cleared by the next good fetch
	Loading   bool
	Loaded    bool
	Version   uint64
	FetchedAt time.Time
}

type Store struct {
	client Client
	notify Notifier
	log    zerolog.Logger
	now    func() time.Time

	gate    *semaphore.Weighted
	fetches singleflight.Group

	mu        sync.RWMutex
	tasks     []model.Task
	fetchErr  error
	loading   bool
	loaded    bool
	version   uint64
	fetchedAt time.Time
	states    map[string]MutationState
	inflight  map[string]int
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(c Client, opts ...Option) *Store {
	s := &Store{
		client:   c,
		notify:   NotifierFunc(func(Notice) {}),
		log:      zerolog.Nop(),
		now:      time.Now,
		gate:     semaphore.NewWeighted(gateWeight),
		states:   make(map[string]MutationState),
		inflight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]model.Task, len(s.tasks))
	copy(tasks, s.tasks)
	return Snapshot{
		Tasks:     tasks,
		Err:       s.fetchErr,
		Loading:   s.loading,
		Loaded:    s.loaded,
		Version:   s.version,
		FetchedAt: s.fetchedAt,
	}
}

// Task looks a task up in the current snapshot.
func (s *Store) Task(id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], nil
	}
	return model.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}

// State returns the latest mutation state recorded for a task.
func (s *Store) State(id string) MutationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id]
}

// Reset drops all local state, used on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
	s.fetchErr = nil
	s.loaded = false
	s.version++
	s.fetchedAt = time.Time{}
	s.states = make(map[string]MutationState)
}

// Fetch replaces the snapshot with the server's list. Overlapping calls
// share one request. On failure the old snapshot stays and the error is
// kept until the next successful fetch.
func (s *Store) Fetch(ctx context.Context) error {
	ch := s.fetches.DoChan("fetch", func() (any, error) {
		return nil, s.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) fetch(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, gateWeight); err != nil {
		return err
	}
	defer s.gate.Release(gateWeight)

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	tasks, err := s.client.ListTasks(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.fetchErr = err
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("fetch tasks")
		s.emit(LevelError, err.Error(), "")
		return err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	s.tasks = tasks
	s.fetchErr = nil
	s.loaded = true
	s.version++
	s.fetchedAt = s.now()
	s.mu.Unlock()

	s.log.Debug().Int("count", len(tasks)).Msg("tasks fetched")
	return nil
}

// Create validates the draft, sends it and prepends the server's task.
// Validation failures never reach the network.
func (s *Store) Create(ctx context.Context, d model.Draft) (model.Task, error) {
	d, err := ValidateDraft(d)
	if err != nil {
		s.emit(LevelError, err.Error(), "")
		return model.Task{}, err
	}

	var created model.Task
	err = s.mutate(ctx, "", "create", func(ctx context.Context) error {
		t, err := s.client.CreateTask(ctx, d)
		if err != nil {
			return err
		}
		created = t
		s.mu.Lock()
		s.tasks = append([]model.Task{t}, s.tasks...)
		s.states[t.ID] = MutationState{Phase: PhaseCommitted, Op: "create"}
		s.version++
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.emit(LevelSuccess, "Task created successfully!", created.ID)
	return created, nil
}

// Update sends a partial update and replaces the local entry with the
// server's full task.
func (s *Store) Update(ctx context.Context, id string, p model.Patch) (model.Task, error) {
	p, err := ValidatePatch(p)
	if err != nil {
		s.emit(LevelError, err.Error(), id)
		return model.Task{}, err
	}

	var updated model.Task
	err = s.mutate(ctx, id, "update", func(ctx context.Context) error {
		t, err := s.client.UpdateTask(ctx, id, p)
		if err != nil {
			return err
		}
		updated = t
		s.replace(id, t)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.emit(LevelSuccess, "Task updated successfully!", id)
	return updated, nil
}

// Delete removes the task on the server, then locally.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.mutate(ctx, id, "delete", func(ctx context.Context) error {
		if err := s.client.DeleteTask(ctx, id); err != nil {
			return err
		}
		s.mu.Lock()
		if i := s.indexOf(id); i >= 0 {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			s.version++
		}
		delete(s.states, id)
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(LevelSuccess, "Task deleted successfully!", id)
	return nil
}

// ToggleCompletion asks the server to flip the task. desired only picks the
// notice text; the server's result wins even when it disagrees, which
// happens when two toggles for the same task race.
func (s *Store) ToggleCompletion(ctx context.Context, id string, desired bool) (model.Task, error) {
	var toggled model.Task
	err := s.mutate(ctx, id, "toggle", func(ctx context.Context) error {
		t, err := s.client.CompleteTask(ctx, id)
		if err != nil {
			return err
		}
		toggled = t
		s.replace(id, t)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	if toggled.IsCompleted != desired {
		s.log.Warn().
			Str("task_id", id).
			Bool("desired", desired).
			Bool("server", toggled.IsCompleted).
			Msg("toggle result differs from requested state")
	}
	if desired {
		s.emit(LevelSuccess, "Task marked as completed!", id)
	} else {
		s.emit(LevelSuccess, "Task marked as incomplete!", id)
	}
	return toggled, nil
}

// Toggle flips a task using its current local state as the desired one.
func (s *Store) Toggle(ctx context.Context, id string) (model.Task, error) {
	t, err := s.Task(id)
	if err != nil {
		return model.Task{}, err
	}
	return s.ToggleCompletion(ctx, id, !t.IsCompleted)
}

// mutate runs call under the gate, tracking the task's mutation state.
// Errors are reported as notices and returned.
func (s *Store) mutate(ctx context.Context, id, op string, call func(context.Context) error) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	if id != "" {
		s.mu.Lock()
		s.inflight[id]++
		if s.inflight[id] > 1 {
			s.log.Warn().Str("task_id", id).Str("op", op).Int("inflight", s.inflight[id]).
				Msg("overlapping mutations, last response wins")
		}
		s.states[id] = MutationState{Phase: PhasePending, Op: op}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			if s.inflight[id]--; s.inflight[id] <= 0 {
				delete(s.inflight, id)
			}
			s.mu.Unlock()
		}()
	}

	err := call(ctx)
	if err != nil {
		if id != "" {
			s.mu.Lock()
			s.states[id] = MutationState{Phase: PhaseFailed, Op: op, Err: err}
			s.mu.Unlock()
		}
		s.log.Error().Err(err).Str("op", op).Str("task_id", id).Msg("task mutation failed")
		s.emit(LevelError, err.Error(), id)
		return err
	}

	if id != "" && op != "delete" {
		s.mu.Lock()
		s.states[id] = MutationState{Phase: PhaseCommitted, Op: op}
		s.mu.Unlock()
	}
	return nil
}

// replace swaps the entry with the given id for t. A task no longer in the
// snapshot is not re-added.
func (s *Store) replace(id string, t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.tasks[i] = t
		s.version++
	}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) emit(level Level, msg, taskID string) {
	s.notify.Notify(Notice{Level: level, Message: msg, TaskID: taskID, At: s.now()})
}

// IsValidation reports whether err came from local validation rather than
// the server.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrTitleTooLong) ||
		errors.Is(err, ErrDescriptionTooLong) ||
		errors.Is(err, ErrEmptyPatch)
}

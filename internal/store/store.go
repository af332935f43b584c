// Package store is the client-side cache of the remote task list.
//
// The cache is only ever replaced by a successful fetch. Mutations go to the
// API first; when the API confirms, the store announces success and refetches
// the whole list exactly once. Failures leave the cache as it was and raise a
// single error notification.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskgraph/internal/ctxlog"
	"taskgraph/internal/domain"
)

const (
	MsgFetchError  = "Error fetching tasks"
	MsgSaveError   = "Error saving task"
	MsgDeleteError = "Error deleting task"
	MsgCreated     = "Task created successfully"
	MsgUpdated     = "Task updated successfully"
	MsgDeleted     = "Task deleted successfully"
)

// API is the remote task service.
type API interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, fields domain.TaskFields) (domain.Task, error)
	UpdateTask(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Notification struct {
	Message  string
	Severity Severity
	// Err is the underlying failure for error notifications. It is not shown
	// to the user.
	Err error
}

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Failure is returned by store operations whose failure has already been
// announced through the Notifier.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string { return f.Op + ": " + f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Notified reports whether err has already been shown to the user as a
// notification.
func Notified(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateFailed  State = "failed"
)

// Snapshot is a point-in-time copy of the store. Seq increases with every
// state change, so a later snapshot always has a larger Seq.
type Snapshot struct {
	Seq       uint64
	State     State
	Tasks     []domain.Task
	Err       error
	FetchedAt time.Time
}

type Store struct {
	api    API
	notify Notifier
	now    func() time.Time

	mu        sync.Mutex
	seq       uint64
	state     State
	tasks     []domain.Task
	err       error
	fetchedAt time.Time
	listeners []func(Snapshot)
}

// New returns an idle store. A nil notifier discards notifications.
func New(api API, notify Notifier) *Store {
	if notify == nil {
		notify = NotifierFunc(func(Notification) {})
	}
	return &Store{api: api, notify: notify, now: time.Now, state: StateIdle}
}

// Subscribe registers fn to be called with a new snapshot after every state
// change. Listeners run synchronously on the goroutine that caused the change.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Tasks returns a copy of the cached task sequence.
func (s *Store) Tasks() []domain.Task {
	return s.Snapshot().Tasks
}

// FetchAll replaces the cache with the remote list. On failure the previous
// tasks stay available and one error notification is raised.
func (s *Store) FetchAll(ctx context.Context) ([]domain.Task, error) {
	log := ctxlog.FromContext(ctx)
	s.setState(func() { s.state = StateLoading })

	tasks, err := s.api.ListTasks(ctx)
	if err != nil {
		log.Debug("fetch tasks failed", "error", err)
		s.setState(func() {
			s.state = StateFailed
			s.err = err
		})
		s.notify.Notify(Notification{Message: MsgFetchError, Severity: SeverityError, Err: err})
		return nil, &Failure{Op: "fetch tasks", Err: err}
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	log.Debug("fetched tasks", "count", len(tasks))
	s.setState(func() {
		s.state = StateLoaded
		s.tasks = tasks
		s.err = nil
		s.fetchedAt = s.now()
	})
	return cloneTasks(tasks), nil
}

// Create sends fields to the API and refetches on success.
func (s *Store) Create(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	task, err := s.api.CreateTask(ctx, fields)
	if err != nil {
		return domain.Task{}, s.fail(ctx, "create task", MsgSaveError, err)
	}
	s.succeed(ctx, MsgCreated, "task_id", task.ID)
	return task, nil
}

// Update replaces the mutable fields of task id and refetches on success.
func (s *Store) Update(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error) {
	task, err := s.api.UpdateTask(ctx, id, fields)
	if err != nil {
		return domain.Task{}, s.fail(ctx, "update task", MsgSaveError, err)
	}
	s.succeed(ctx, MsgUpdated, "task_id", id)
	return task, nil
}

// Delete removes task id and refetches on success.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.api.DeleteTask(ctx, id); err != nil {
		return s.fail(ctx, "delete task", MsgDeleteError, err)
	}
	s.succeed(ctx, MsgDeleted, "task_id", id)
	return nil
}

func (s *Store) succeed(ctx context.Context, msg string, attrs ...any) {
	ctxlog.FromContext(ctx).Debug(msg, attrs...)
	s.notify.Notify(Notification{Message: msg, Severity: SeveritySuccess})
	// A failed refetch raises its own notification.
	_, _ = s.FetchAll(ctx)
}

func (s *Store) fail(ctx context.Context, op, msg string, err error) error {
	ctxlog.FromContext(ctx).Debug(op+" failed", "error", err)
	s.notify.Notify(Notification{Message: msg, Severity: SeverityError, Err: err})
	return &Failure{Op: op, Err: err}
}

func (s *Store) setState(mutate func()) {
	s.mu.Lock()
	mutate()
	s.seq++
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:       s.seq,
		State:     s.state,
		Tasks:     cloneTasks(s.tasks),
		Err:       s.err,
		FetchedAt: s.fetchedAt,
	}
}

func cloneTasks(in []domain.Task) []domain.Task {
	if in == nil {
		return nil
	}
	out := make([]domain.Task, len(in))
	for i, t := range in {
		if t.ParentID != nil {
			v := *t.ParentID
			t.ParentID = &v
		}
		if t.Position != nil {
			p := *t.Position
			t.Position = &p
		}
		out[i] = t
	}
	return out
}

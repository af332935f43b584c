package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/domain"
)

type fakeAPI struct {
	mu        sync.Mutex
	tasks     []domain.Task
	nextID    int64
	listCalls int
	listErr   error
	writeErr  error
}

func (f *fakeAPI) ListTasks(context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeAPI) CreateTask(_ context.Context, fields domain.TaskFields) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return domain.Task{}, f.writeErr
	}
	f.nextID++
	t := domain.Task{ID: f.nextID, Title: fields.Title, Description: fields.Description, ParentID: fields.ParentID, Status: fields.Status}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int64, fields domain.TaskFields) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return domain.Task{}, f.writeErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Title = fields.Title
			f.tasks[i].Status = fields.Status
			return f.tasks[i], nil
		}
	}
	return domain.Task{}, errors.New("not found")
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) bySeverity(sev Severity) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Severity == sev {
			out = append(out, n.Message)
		}
	}
	return out
}

func seeded() (*fakeAPI, *recorder, *Store) {
	api := &fakeAPI{
		tasks: []domain.Task{
			{ID: 1, Title: "root", Status: domain.StatusTodo},
			{ID: 2, Title: "child", Status: domain.StatusDone, ParentID: ptr(int64(1)), Position: &domain.Position{X: 5, Y: 5}},
		},
		nextID: 2,
	}
	rec := &recorder{}
	return api, rec, New(api, rec)
}

func ptr[T any](v T) *T { return &v }

func TestFetchAllLoadsInAPIOrder(t *testing.T) {
	api, _, s := seeded()
	require.Equal(t, StateIdle, s.Snapshot().State)

	tasks, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(api.tasks, tasks); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	snap := s.Snapshot()
	require.Equal(t, StateLoaded, snap.State)
	require.False(t, snap.FetchedAt.IsZero())
}

func TestFetchAllFailureKeepsStaleTasks(t *testing.T) {
	api, rec, s := seeded()
	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	before := s.Tasks()

	api.listErr = errors.New("connection refused")
	_, err = s.FetchAll(context.Background())
	require.ErrorIs(t, err, api.listErr)
	require.True(t, Notified(err))

	snap := s.Snapshot()
	require.Equal(t, StateFailed, snap.State)
	require.ErrorIs(t, snap.Err, api.listErr)
	require.Equal(t, before, snap.Tasks)
	require.Equal(t, []string{MsgFetchError}, rec.bySeverity(SeverityError))
}

func TestSuccessfulMutationsRefetchOnce(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		run  func(*Store) error
		msg  string
		want int
	}{
		"create": {
			run: func(s *Store) error {
				_, err := s.Create(ctx, domain.TaskFields{Title: "new", Status: domain.StatusTodo})
				return err
			},
			msg:  MsgCreated,
			want: 3,
		},
		"update": {
			run: func(s *Store) error {
				_, err := s.Update(ctx, 1, domain.TaskFields{Title: "renamed", Status: domain.StatusInProgress})
				return err
			},
			msg:  MsgUpdated,
			want: 2,
		},
		"delete": {
			run:  func(s *Store) error { return s.Delete(ctx, 2) },
			msg:  MsgDeleted,
			want: 1,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api, rec, s := seeded()
			require.NoError(t, tc.run(s))
			require.Equal(t, 1, api.listCalls)
			require.Equal(t, []string{tc.msg}, rec.bySeverity(SeveritySuccess))
			require.Empty(t, rec.bySeverity(SeverityError))
			require.Len(t, s.Tasks(), tc.want)
			require.Equal(t, StateLoaded, s.Snapshot().State)
		})
	}
}

func TestFailedMutationsLeaveCacheUnchanged(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		run func(*Store) error
		msg string
	}{
		"create": {
			run: func(s *Store) error {
				_, err := s.Create(ctx, domain.TaskFields{Title: "new"})
				return err
			},
			msg: MsgSaveError,
		},
		"update": {
			run: func(s *Store) error {
				_, err := s.Update(ctx, 1, domain.TaskFields{Title: "renamed"})
				return err
			},
			msg: MsgSaveError,
		},
		"delete": {
			run: func(s *Store) error { return s.Delete(ctx, 1) },
			msg: MsgDeleteError,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api, rec, s := seeded()
			_, err := s.FetchAll(ctx)
			require.NoError(t, err)
			before := s.Snapshot()

			api.writeErr = errors.New("500 internal server error")
			err = tc.run(s)
			require.ErrorIs(t, err, api.writeErr)
			require.True(t, Notified(err))

			after := s.Snapshot()
			if diff := cmp.Diff(before.Tasks, after.Tasks); diff != "" {
				t.Fatalf("cache changed (-before +after):\n%s", diff)
			}
			require.Equal(t, before.State, after.State)
			require.Equal(t, 1, api.listCalls)
			require.Equal(t, []string{tc.msg}, rec.bySeverity(SeverityError))
			require.Empty(t, rec.bySeverity(SeveritySuccess))
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	_, _, s := seeded()
	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)

	tasks := s.Tasks()
	tasks[0].Title = "mutated"
	tasks[1].Position.X = 99
	*tasks[1].ParentID = 42

	fresh := s.Tasks()
	require.Equal(t, "root", fresh[0].Title)
	require.Equal(t, 5.0, fresh[1].Position.X)
	require.Equal(t, int64(1), *fresh[1].ParentID)
}

func TestSubscribeSeesTransitions(t *testing.T) {
	api, _, s := seeded()
	var states []State
	var seqs []uint64
	s.Subscribe(func(snap Snapshot) {
		states = append(states, snap.State)
		seqs = append(seqs, snap.Seq)
	})

	_, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	api.listErr = errors.New("boom")
	_, _ = s.FetchAll(context.Background())

	require.Equal(t, []State{StateLoading, StateLoaded, StateLoading, StateFailed}, states)
	require.Equal(t, []uint64{1, 2, 3, 4}, seqs)
	require.Equal(t, uint64(4), s.Snapshot().Seq)
}

func TestNilNotifierIsAllowed(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("offline")}
	s := New(api, nil)
	_, err := s.FetchAll(context.Background())
	require.Error(t, err)
	require.Nil(t, s.Tasks())
}

func TestNotified(t *testing.T) {
	require.False(t, Notified(nil))
	require.False(t, Notified(errors.New("flag parse")))
	err := &Failure{Op: "delete task", Err: errors.New("409 conflict")}
	require.True(t, Notified(fmt.Errorf("task delete: %w", err)))
	require.EqualError(t, err, "delete task: 409 conflict")
}

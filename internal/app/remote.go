package app

import (
	"context"

	"taskgraph/internal/domain"
	taskgraphsdk "taskgraph/sdk/go"
)

// RemoteAPI adapts the HTTP SDK client to store.API.
type RemoteAPI struct {
	Client *taskgraphsdk.Client
}

func (r RemoteAPI) ListTasks(ctx context.Context) ([]domain.Task, error) {
	items, err := r.Client.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(items))
	for _, it := range items {
		out = append(out, FromSDK(it))
	}
	return out, nil
}

func (r RemoteAPI) CreateTask(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	t, err := r.Client.CreateTask(ctx, ToSDK(fields))
	if err != nil {
		return domain.Task{}, err
	}
	return FromSDK(t), nil
}

func (r RemoteAPI) UpdateTask(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error) {
	t, err := r.Client.UpdateTask(ctx, id, ToSDK(fields))
	if err != nil {
		return domain.Task{}, err
	}
	return FromSDK(t), nil
}

func (r RemoteAPI) DeleteTask(ctx context.Context, id int64) error {
	return r.Client.DeleteTask(ctx, id)
}

// FromSDK converts a wire task. Unknown status strings are kept verbatim so
// that a newer server does not break listing.
func FromSDK(t taskgraphsdk.Task) domain.Task {
	out := domain.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ParentID:    t.ParentID,
		Status:      domain.Status(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Position != nil {
		out.Position = &domain.Position{X: t.Position.X, Y: t.Position.Y}
	}
	return out
}

func ToSDK(f domain.TaskFields) taskgraphsdk.TaskInput {
	in := taskgraphsdk.TaskInput{
		Title:       f.Title,
		Description: f.Description,
		ParentID:    f.ParentID,
		Status:      string(f.Status),
	}
	if f.Position != nil {
		in.Position = &taskgraphsdk.Position{X: f.Position.X, Y: f.Position.Y}
	}
	return in
}

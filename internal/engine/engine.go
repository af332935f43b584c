package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskgraph/internal/domain"
	"taskgraph/internal/events"
	"taskgraph/internal/repo"
)

var (
	// ErrInvalid marks input that can never succeed as sent.
	ErrInvalid = errors.New("invalid")
	// ErrConflict marks input that clashes with the current state of the store.
	ErrConflict = errors.New("conflict")
)

const maxTreeDepth = 10000

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	ParentID    *int64
	Status      string
	Position    *domain.Position
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	status, err := domain.ParseStatus(opts.Status)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	parentID := normalizeParent(opts.ParentID)
	if parentID != nil {
		if _, err := e.Repo.GetTaskTx(ctx, tx, *parentID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Task{}, fmt.Errorf("%w: parent task %d not found", ErrInvalid, *parentID)
			}
			return domain.Task{}, err
		}
	}
	ts := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		Title:       title,
		Description: opts.Description,
		ParentID:    parentID,
		Status:      status,
		Position:    opts.Position,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	id, err := e.Repo.InsertTaskTx(ctx, tx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.ID = id
	if _, err := e.writer().Append(ctx, tx, events.TaskCreated, "task", idString(id), opts.ActorID, events.Payload{
		"title":     t.Title,
		"status":    t.Status,
		"parent_id": t.ParentID,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries a partial update; only provided fields change.
type TaskUpdateOptions struct {
	ID               int64
	Title            *string
	Description      *string
	Status           *string
	ParentProvided   bool
	SetParent        *int64
	PositionProvided bool
	SetPosition      *domain.Position
	ActorID          string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	changed := []string{}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Task{}, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		t.Title = title
		changed = append(changed, "title")
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed = append(changed, "description")
	}
	if opts.Status != nil {
		status, err := domain.ParseStatus(*opts.Status)
		if err != nil {
			return domain.Task{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		t.Status = status
		changed = append(changed, "status")
	}
	if opts.ParentProvided {
		parentID := normalizeParent(opts.SetParent)
		if parentID != nil {
			if err := e.checkParent(ctx, tx, t.ID, *parentID); err != nil {
				return domain.Task{}, err
			}
		}
		t.ParentID = parentID
		changed = append(changed, "parent_id")
	}
	if opts.PositionProvided {
		t.Position = opts.SetPosition
		changed = append(changed, "position")
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if _, err := e.writer().Append(ctx, tx, events.TaskUpdated, "task", idString(t.ID), opts.ActorID, events.Payload{
		"changed": changed,
		"status":  t.Status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask removes a leaf task. Tasks that still have children are refused.
func (e Engine) DeleteTask(ctx context.Context, id int64, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return err
	}
	children, err := e.Repo.CountChildrenTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: task %d still has %d child task(s)", ErrConflict, id, children)
	}
	if err := e.Repo.DeleteTaskTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := e.writer().Append(ctx, tx, events.TaskDeleted, "task", idString(id), actorID, events.Payload{
		"title": t.Title,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// checkParent keeps the parent relation a forest.
func (e Engine) checkParent(ctx context.Context, tx *sql.Tx, id, parentID int64) error {
	if parentID == id {
		return fmt.Errorf("%w: task %d cannot be its own parent", ErrConflict, id)
	}
	if _, err := e.Repo.GetTaskTx(ctx, tx, parentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: parent task %d not found", ErrInvalid, parentID)
		}
		return err
	}
	ancestors, err := e.Repo.AncestorsTx(ctx, tx, parentID, maxTreeDepth)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a == id {
			return fmt.Errorf("%w: parent %d is a descendant of task %d", ErrConflict, parentID, id)
		}
	}
	return nil
}

// normalizeParent maps a zero parent id to "no parent", matching how clients
// interpret the field.
func normalizeParent(p *int64) *int64 {
	if p == nil || *p == 0 {
		return nil
	}
	v := *p
	return &v
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

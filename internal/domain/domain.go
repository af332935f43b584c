package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus validates s; an empty string yields StatusTodo.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusTodo, nil
	}
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q (want todo, in_progress or done)", s)
}

// Next cycles todo -> in_progress -> done -> todo.
func (s Status) Next() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusTodo
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ParentID    *int64    `json:"parent_id"`
	Status      Status    `json:"status" enum:"todo,in_progress,done"`
	Position    *Position `json:"position"`
	CreatedAt   string    `json:"created_at" format:"date-time"`
	UpdatedAt   string    `json:"updated_at" format:"date-time"`
}

// Fields returns the mutable part of the task, the body shape used by create and update.
func (t Task) Fields() TaskFields {
	return TaskFields{
		Title:       t.Title,
		Description: t.Description,
		ParentID:    t.ParentID,
		Status:      t.Status,
		Position:    t.Position,
	}
}

// HasParent applies the parent truthiness rule: nil and zero both mean "no parent".
func (t Task) HasParent() bool {
	return t.ParentID != nil && *t.ParentID != 0
}

type TaskFields struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ParentID    *int64    `json:"parent_id"`
	Status      Status    `json:"status"`
	Position    *Position `json:"position,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

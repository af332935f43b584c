package server

import (
	"taskgraph/internal/domain"
)

// Request payloads

type PositionBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CreateTaskRequest struct {
	Title       string        `json:"title" example:"Write release notes"`
	Description *string       `json:"description,omitempty"`
	ParentID    *int64        `json:"parent_id,omitempty" nullable:"true" doc:"Parent task id; null or 0 means a root task"`
	Status      *string       `json:"status,omitempty" doc:"todo, in_progress or done; defaults to todo"`
	Position    *PositionBody `json:"position,omitempty" doc:"Optional layout hint for graph views"`
}

// UpdateTaskRequest is a partial update: only keys present in the body are
// applied. An explicit null parent_id detaches the task.
type UpdateTaskRequest struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	ParentID    *int64        `json:"parent_id,omitempty" nullable:"true"`
	Status      *string       `json:"status,omitempty"`
	Position    *PositionBody `json:"position,omitempty"`
}

// Response payloads

type TaskResponse struct {
	ID          int64         `json:"id" example:"1"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ParentID    *int64        `json:"parent_id" nullable:"true"`
	Status      string        `json:"status" enum:"todo,in_progress,done"`
	Position    *PositionBody `json:"position,omitempty"`
	CreatedAt   string        `json:"created_at" format:"date-time"`
	UpdatedAt   string        `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func taskResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ParentID:    t.ParentID,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Position != nil {
		resp.Position = &PositionBody{X: t.Position.X, Y: t.Position.Y}
	}
	return resp
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func eventResponse(evt domain.Event) EventResponse {
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    evt.Payload,
	}
}

func (p *PositionBody) domain() *domain.Position {
	if p == nil {
		return nil
	}
	return &domain.Position{X: p.X, Y: p.Y}
}

// Package graph projects a flat task sequence into the node/edge form used by
// the graph view.
//
// A projection is recomputed from scratch on every fetch. Tasks without a stored
// position get a fresh random position each time, so the layout of unpinned
// tasks moves after every refetch. Positions changed by dragging live only in
// the returned Projection and are never written back.
package graph

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"taskgraph/internal/domain"
)

// Bounds is the rectangle random positions are sampled from.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultBounds is the layout box used when none is configured.
var DefaultBounds = Bounds{Width: 500, Height: 300}

// DanglingPolicy decides what happens to edges whose parent is not in the
// projected task set.
type DanglingPolicy string

const (
	DanglingKeep DanglingPolicy = "keep"
	DanglingDrop DanglingPolicy = "drop"
)

// ParseDanglingPolicy accepts "", "keep" and "drop".
func ParseDanglingPolicy(s string) (DanglingPolicy, error) {
	switch DanglingPolicy(s) {
	case "", DanglingKeep:
		return DanglingKeep, nil
	case DanglingDrop:
		return DanglingDrop, nil
	}
	return "", fmt.Errorf("unknown dangling edge policy %q", s)
}

type Node struct {
	ID       string          `json:"id"`
	TaskID   int64           `json:"task_id"`
	Title    string          `json:"title"`
	Status   domain.Status   `json:"status"`
	Label    string          `json:"label"`
	Position domain.Position `json:"position"`
	Pinned   bool            `json:"pinned"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Projection struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	// Dangling holds edges whose source is not among Nodes. With DanglingKeep
	// they are also present in Edges.
	Dangling []Edge `json:"dangling,omitempty"`
}

type Projector struct {
	Bounds   Bounds
	Dangling DanglingPolicy
	// Rand returns a value in [0,1). Defaults to math/rand/v2.Float64.
	Rand func() float64
}

// NewProjector returns a projector with the given bounds, falling back to
// DefaultBounds for non-positive dimensions.
func NewProjector(b Bounds, policy DanglingPolicy) Projector {
	if b.Width <= 0 || b.Height <= 0 {
		b = DefaultBounds
	}
	if policy == "" {
		policy = DanglingKeep
	}
	return Projector{Bounds: b, Dangling: policy}
}

// Project maps tasks to one node per task, in input order, and one edge per
// task with a non-nil, non-zero parent id.
func (p Projector) Project(tasks []domain.Task) Projection {
	random := p.Rand
	if random == nil {
		random = rand.Float64
	}
	bounds := p.Bounds
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = DefaultBounds
	}

	out := Projection{
		Nodes: make([]Node, 0, len(tasks)),
		Edges: []Edge{},
	}
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		n := Node{
			ID:     NodeID(t.ID),
			TaskID: t.ID,
			Title:  t.Title,
			Status: t.Status,
			Label:  Label(t),
		}
		if t.Position != nil {
			n.Position = *t.Position
			n.Pinned = true
		} else {
			n.Position = domain.Position{X: random() * bounds.Width, Y: random() * bounds.Height}
		}
		out.Nodes = append(out.Nodes, n)
		present[n.ID] = true
	}
	for _, t := range tasks {
		if !t.HasParent() {
			continue
		}
		e := Edge{
			ID:     EdgeID(*t.ParentID, t.ID),
			Source: NodeID(*t.ParentID),
			Target: NodeID(t.ID),
		}
		if !present[e.Source] {
			out.Dangling = append(out.Dangling, e)
			if p.Dangling == DanglingDrop {
				continue
			}
		}
		out.Edges = append(out.Edges, e)
	}
	return out
}

// Node returns the node with the given id.
func (p Projection) Node(id string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Move shifts a node by (dx, dy). It only changes this projection.
func (p *Projection) Move(id string, dx, dy float64) bool {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			p.Nodes[i].Position.X += dx
			p.Nodes[i].Position.Y += dy
			return true
		}
	}
	return false
}

// NodeID renders a task id the way graph nodes are keyed.
func NodeID(taskID int64) string {
	return strconv.FormatInt(taskID, 10)
}

// EdgeID derives an edge key from the (parent, child) pair.
func EdgeID(parentID, childID int64) string {
	return fmt.Sprintf("e%d-%d", parentID, childID)
}

// Label is the node caption: title followed by status.
func Label(t domain.Task) string {
	return fmt.Sprintf("%s (%s)", t.Title, t.Status)
}

package graph

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/domain"
)

func id(v int64) *int64 { return &v }

func fixedRand(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[i%len(vals)]
		i++
		return v
	}
}

func TestProjectSingleRoot(t *testing.T) {
	p := NewProjector(DefaultBounds, DanglingKeep)
	out := p.Project([]domain.Task{{ID: 1, Title: "root", Status: domain.StatusTodo}})
	require.Len(t, out.Nodes, 1)
	require.Empty(t, out.Edges)
	require.Equal(t, "1", out.Nodes[0].ID)
	require.Equal(t, "root (todo)", out.Nodes[0].Label)
}

func TestProjectParentChild(t *testing.T) {
	p := Projector{Bounds: DefaultBounds, Rand: fixedRand(0.5)}
	out := p.Project([]domain.Task{
		{ID: 1, Title: "parent", Status: domain.StatusTodo},
		{ID: 2, Title: "child", Status: domain.StatusDone, ParentID: id(1)},
	})
	require.Len(t, out.Nodes, 2)
	want := []Edge{{ID: "e1-2", Source: "1", Target: "2"}}
	if diff := cmp.Diff(want, out.Edges); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, out.Dangling)
	require.Equal(t, domain.Position{X: 250, Y: 150}, out.Nodes[0].Position)
}

func TestProjectCopiesStoredPosition(t *testing.T) {
	p := Projector{Rand: func() float64 { t.Fatal("random sampled for pinned task"); return 0 }}
	out := p.Project([]domain.Task{{ID: 7, Title: "pinned", Position: &domain.Position{X: 5, Y: 5}}})
	require.Equal(t, domain.Position{X: 5, Y: 5}, out.Nodes[0].Position)
	require.True(t, out.Nodes[0].Pinned)

	origin := p.Project([]domain.Task{{ID: 8, Title: "origin", Position: &domain.Position{}}})
	require.Equal(t, domain.Position{}, origin.Nodes[0].Position)
}

func TestProjectRandomPositionsStayInBounds(t *testing.T) {
	p := NewProjector(Bounds{Width: 40, Height: 10}, DanglingKeep)
	tasks := make([]domain.Task, 200)
	for i := range tasks {
		tasks[i] = domain.Task{ID: int64(i + 1), Title: fmt.Sprint(i)}
	}
	for _, n := range p.Project(tasks).Nodes {
		require.GreaterOrEqual(t, n.Position.X, 0.0)
		require.Less(t, n.Position.X, 40.0)
		require.GreaterOrEqual(t, n.Position.Y, 0.0)
		require.Less(t, n.Position.Y, 10.0)
		require.False(t, n.Pinned)
	}
}

func TestProjectResamplesUnpinnedPositions(t *testing.T) {
	p := Projector{Bounds: DefaultBounds, Rand: fixedRand(0.1, 0.2, 0.3, 0.4)}
	tasks := []domain.Task{{ID: 1, Title: "a"}}
	first := p.Project(tasks).Nodes[0].Position
	second := p.Project(tasks).Nodes[0].Position
	require.NotEqual(t, first, second)
}

func TestProjectEmpty(t *testing.T) {
	out := NewProjector(DefaultBounds, DanglingKeep).Project(nil)
	require.NotNil(t, out.Nodes)
	require.NotNil(t, out.Edges)
	require.Empty(t, out.Nodes)
	require.Empty(t, out.Edges)
}

func TestProjectCountsMatchTasks(t *testing.T) {
	tasks := []domain.Task{
		{ID: 1, Title: "a"},
		{ID: 2, Title: "b", ParentID: id(1)},
		{ID: 3, Title: "c", ParentID: id(0)},
		{ID: 4, Title: "d", ParentID: id(2)},
		{ID: 5, Title: "e", ParentID: id(99)},
		{ID: 6, Title: "f", ParentID: id(1)},
	}
	wantEdges := 0
	for _, task := range tasks {
		if task.ParentID != nil && *task.ParentID != 0 {
			wantEdges++
		}
	}
	out := NewProjector(DefaultBounds, DanglingKeep).Project(tasks)
	require.Len(t, out.Nodes, len(tasks))
	require.Len(t, out.Edges, wantEdges)
	for i, n := range out.Nodes {
		require.Equal(t, NodeID(tasks[i].ID), n.ID)
	}
}

func TestProjectDanglingPolicy(t *testing.T) {
	tasks := []domain.Task{
		{ID: 1, Title: "a"},
		{ID: 5, Title: "orphan", ParentID: id(99)},
	}
	kept := NewProjector(DefaultBounds, DanglingKeep).Project(tasks)
	require.Len(t, kept.Edges, 1)
	require.Equal(t, []Edge{{ID: "e99-5", Source: "99", Target: "5"}}, kept.Dangling)

	dropped := NewProjector(DefaultBounds, DanglingDrop).Project(tasks)
	require.Empty(t, dropped.Edges)
	require.Len(t, dropped.Dangling, 1)
}

func TestParseDanglingPolicy(t *testing.T) {
	p, err := ParseDanglingPolicy("")
	require.NoError(t, err)
	require.Equal(t, DanglingKeep, p)
	p, err = ParseDanglingPolicy("drop")
	require.NoError(t, err)
	require.Equal(t, DanglingDrop, p)
	_, err = ParseDanglingPolicy("hide")
	require.Error(t, err)
}

func TestMoveOnlyTouchesProjection(t *testing.T) {
	task := domain.Task{ID: 1, Title: "a", Position: &domain.Position{X: 10, Y: 10}}
	out := NewProjector(DefaultBounds, DanglingKeep).Project([]domain.Task{task})
	require.True(t, out.Move("1", 5, -2))
	require.False(t, out.Move("2", 1, 1))
	n, ok := out.Node("1")
	require.True(t, ok)
	require.Equal(t, domain.Position{X: 15, Y: 8}, n.Position)
	require.Equal(t, domain.Position{X: 10, Y: 10}, *task.Position)
}

func TestWriteDOT(t *testing.T) {
	out := NewProjector(DefaultBounds, DanglingKeep).Project([]domain.Task{
		{ID: 1, Title: "a", Status: domain.StatusTodo, Position: &domain.Position{X: 1, Y: 2}},
		{ID: 2, Title: "b", Status: domain.StatusDone, ParentID: id(1), Position: &domain.Position{}},
		{ID: 3, Title: "c", ParentID: id(42), Position: &domain.Position{}},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, out))
	dot := buf.String()
	require.True(t, strings.HasPrefix(dot, "digraph tasks {"))
	require.Contains(t, dot, `"1" [label="a\ntodo", pos="1.0,-2.0!"];`)
	require.Contains(t, dot, `"1" -> "2";`)
	require.Contains(t, dot, `"42" -> "3" [style=dashed, color=red];`)
}

func TestCanvasRender(t *testing.T) {
	out := NewProjector(DefaultBounds, DanglingKeep).Project([]domain.Task{
		{ID: 1, Title: "a", Position: &domain.Position{X: 0, Y: 0}},
		{ID: 2, Title: "b", ParentID: id(1), Position: &domain.Position{X: 500, Y: 300}},
	})
	c := Canvas{Cols: 20, Rows: 5, Bounds: DefaultBounds}
	lines := c.Render(out, "2")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[0], "[a]"))
	require.True(t, strings.HasSuffix(lines[4], "»b«"))
	require.Contains(t, strings.Join(lines[1:4], ""), string(edgeRune))
	for _, l := range lines {
		require.Equal(t, 20, len([]rune(l)))
	}
	require.Nil(t, Canvas{}.Render(out, ""))
}

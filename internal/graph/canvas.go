package graph

import (
	"math"

	"taskgraph/internal/domain"
)

// Canvas rasterizes a projection onto a character grid for terminal display.
type Canvas struct {
	Cols int
	Rows int
	// Bounds is the coordinate space mapped onto the grid.
	Bounds Bounds
}

const (
	edgeRune   = '·'
	arrowRune  = '•'
	maxLabelSz = 18
)

// Render draws edges first and node labels on top. The selected node is
// wrapped in guillemets. Positions outside Bounds are clamped to the border.
func (c Canvas) Render(p Projection, selected string) []string {
	if c.Cols <= 0 || c.Rows <= 0 {
		return nil
	}
	grid := make([][]rune, c.Rows)
	for i := range grid {
		grid[i] = make([]rune, c.Cols)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}
	cells := make(map[string][2]int, len(p.Nodes))
	for _, n := range p.Nodes {
		cells[n.ID] = c.cell(n.Position)
	}
	for _, e := range p.Edges {
		from, ok := cells[e.Source]
		if !ok {
			continue
		}
		to := cells[e.Target]
		c.line(grid, from, to)
		grid[to[1]][to[0]] = arrowRune
	}
	for _, n := range p.Nodes {
		label := []rune(n.Title)
		if len(label) > maxLabelSz {
			label = append(label[:maxLabelSz-1], '…')
		}
		if n.ID == selected {
			label = append(append([]rune{'»'}, label...), '«')
		} else {
			label = append(append([]rune{'['}, label...), ']')
		}
		at := cells[n.ID]
		col := at[0]
		if col+len(label) > c.Cols {
			col = max(0, c.Cols-len(label))
		}
		for i, r := range label {
			if col+i >= c.Cols {
				break
			}
			grid[at[1]][col+i] = r
		}
	}
	lines := make([]string, c.Rows)
	for i, row := range grid {
		lines[i] = string(row)
	}
	return lines
}

func (c Canvas) cell(pos domain.Position) [2]int {
	b := c.Bounds
	if b.Width <= 0 || b.Height <= 0 {
		b = DefaultBounds
	}
	x := clamp(pos.X/b.Width, 0, 1)
	y := clamp(pos.Y/b.Height, 0, 1)
	return [2]int{
		int(math.Round(x * float64(c.Cols-1))),
		int(math.Round(y * float64(c.Rows-1))),
	}
}

// line draws a Bresenham segment between two cells, excluding the endpoints.
func (c Canvas) line(grid [][]rune, from, to [2]int) {
	x0, y0 := from[0], from[1]
	x1, y1 := to[0], to[1]
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errTerm := dx + dy
	for {
		if (x0 != from[0] || y0 != from[1]) && (x0 != x1 || y0 != y1) {
			grid[y0][x0] = edgeRune
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x0 += sx
		}
		if e2 <= dx {
			errTerm += dx
			y0 += sy
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

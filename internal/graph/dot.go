package graph

import (
	"fmt"
	"io"
	"strconv"
)

// WriteDOT renders the projection as a Graphviz digraph. Node positions are
// emitted as pinned pos attributes in points, y flipped so the layout matches
// the screen orientation.
func WriteDOT(w io.Writer, p Projection) error {
	if _, err := io.WriteString(w, "digraph tasks {\n  node [shape=box, style=rounded];\n"); err != nil {
		return err
	}
	for _, n := range p.Nodes {
		if _, err := fmt.Fprintf(w, "  %s [label=%s, pos=\"%.1f,%.1f!\"];\n",
			strconv.Quote(n.ID), strconv.Quote(n.Title+"\n"+string(n.Status)), n.Position.X, -n.Position.Y); err != nil {
			return err
		}
	}
	dangling := make(map[string]bool, len(p.Dangling))
	for _, e := range p.Dangling {
		dangling[e.ID] = true
	}
	for _, e := range p.Edges {
		attrs := ""
		if dangling[e.ID] {
			attrs = " [style=dashed, color=red]"
		}
		if _, err := fmt.Fprintf(w, "  %s -> %s%s;\n", strconv.Quote(e.Source), strconv.Quote(e.Target), attrs); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

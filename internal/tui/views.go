package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskgraph/internal/domain"
	"taskgraph/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)
	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)
	canvasStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
)

func statusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	case domain.StatusInProgress:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	}
}

func (a *App) header() string {
	parts := []string{
		titleStyle.Render("Task Manager"),
		modeStyle.Render("[" + a.mode.String() + " view]"),
	}
	switch {
	case a.busy > 0:
		parts = append(parts, mutedStyle.Render("loading…"))
	case a.snap.State == store.StateFailed:
		parts = append(parts, mutedStyle.Render("offline, showing last fetched tasks"))
	default:
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d tasks", len(a.snap.Tasks))))
	}
	return strings.Join(parts, "  ")
}

func (a *App) footer() string {
	keys := "n new · e edit · d delete · r refresh · v toggle view · q quit"
	if a.mode == ViewGraph {
		keys = "tab select · arrows move · " + keys
	} else {
		keys = "↑/↓ select · " + keys
	}
	return mutedStyle.Render(keys)
}

func (a *App) listView() string {
	if len(a.snap.Tasks) == 0 {
		if a.snap.State == store.StateIdle || a.snap.State == store.StateLoading {
			return mutedStyle.Render("Loading tasks…")
		}
		return mutedStyle.Render("No tasks yet. Press n to create one.")
	}
	var b strings.Builder
	for _, t := range a.snap.Tasks {
		marker := "  "
		title := t.Title
		if t.ID == a.selectedID {
			marker = "› "
			title = selectedRowStyle.Render(title)
		}
		line := fmt.Sprintf("%s%s %s  %s", marker, mutedStyle.Render(fmt.Sprintf("#%-4d", t.ID)), title, statusStyle(t.Status).Render(string(t.Status)))
		if t.HasParent() {
			line += mutedStyle.Render(fmt.Sprintf("  ↳ #%d", *t.ParentID))
		}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			line += "  " + mutedStyle.Render(truncate(desc, max(10, a.width-40)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) graphView() string {
	if len(a.projection.Nodes) == 0 {
		return mutedStyle.Render("No tasks to draw.")
	}
	c := a.canvas()
	selected := ""
	if a.selectedID != 0 {
		selected = fmt.Sprint(a.selectedID)
	}
	body := canvasStyle.Render(strings.Join(c.Render(a.projection, selected), "\n"))
	if n := len(a.projection.Dangling); n > 0 {
		body += "\n" + mutedStyle.Render(fmt.Sprintf("%d edge(s) point at tasks not loaded", n))
	}
	if t, ok := a.selectedTask(); ok {
		body += "\n" + fmt.Sprintf("#%d %s", t.ID, t.Title) + "  " + statusStyle(t.Status).Render(string(t.Status))
	}
	return body
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

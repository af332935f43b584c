package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskgraph/internal/domain"
	"taskgraph/internal/graph"
	"taskgraph/internal/store"
)

// ViewMode selects between the list and graph views.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewGraph
)

func (v ViewMode) String() string {
	if v == ViewGraph {
		return "graph"
	}
	return "list"
}

// Options configures the model.
type Options struct {
	// NotifyDuration is how long a notification stays visible. Zero means 6s.
	NotifyDuration time.Duration
	// Mode is the initial view.
	Mode ViewMode
}

// SnapshotMsg delivers a store state change.
type SnapshotMsg struct {
	Snapshot store.Snapshot
}

// opDoneMsg marks the end of a store call started by the model.
type opDoneMsg struct{}

// App is the root bubbletea model.
type App struct {
	ctx       context.Context
	store     *store.Store
	projector graph.Projector
	notes     *Notifications
	feed      *snapshotFeed

	snap       store.Snapshot
	projection graph.Projection
	fetchedAt  time.Time
	busy       int

	mode       ViewMode
	selectedID int64
	dialog     *Dialog
	snackbar   Snackbar

	width    int
	height   int
	quitting bool
}

// New creates the model and subscribes it to st. notes must be the notifier
// the store was built with.
func New(ctx context.Context, st *store.Store, projector graph.Projector, notes *Notifications, opts Options) *App {
	if notes == nil {
		notes = NewNotifications()
	}
	feed := newSnapshotFeed()
	st.Subscribe(feed.push)
	return &App{
		ctx:        ctx,
		store:      st,
		projector:  projector,
		notes:      notes,
		feed:       feed,
		projection: projector.Project(nil),
		mode:       opts.Mode,
		snackbar:   NewSnackbar(opts.NotifyDuration),
		width:      80,
		height:     24,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetch(), a.notes.wait(), a.feed.wait())
}

func (a *App) fetch() tea.Cmd {
	a.busy++
	return func() tea.Msg {
		_, _ = a.store.FetchAll(a.ctx)
		return opDoneMsg{}
	}
}

// mutate runs a store mutation. The store refetches on success and reports
// the outcome through notifications; state arrives through the feed.
func (a *App) mutate(op func(ctx context.Context) error) tea.Cmd {
	a.busy++
	return func() tea.Msg {
		_ = op(a.ctx)
		return opDoneMsg{}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.dialog != nil {
			a.dialog.SetWidth(min(a.width, 70))
		}
		return a, nil

	case opDoneMsg:
		if a.busy > 0 {
			a.busy--
		}
		return a, nil

	case SnapshotMsg:
		a.applySnapshot(msg.Snapshot)
		return a, a.feed.wait()

	case NotificationMsg:
		return a, tea.Batch(a.snackbar.Show(msg.Note), a.notes.wait())

	case hideSnackbarMsg:
		a.snackbar.hide(msg)
		return a, nil

	case DialogCancelledMsg:
		a.dialog = nil
		return a, nil

	case DialogSubmittedMsg:
		a.dialog = nil
		fields := msg.Fields
		if msg.TaskID == 0 {
			return a, a.mutate(func(ctx context.Context) error {
				_, err := a.store.Create(ctx, fields)
				return err
			})
		}
		id := msg.TaskID
		return a, a.mutate(func(ctx context.Context) error {
			_, err := a.store.Update(ctx, id, fields)
			return err
		})

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.quitting = true
			return a, tea.Quit
		}
		if a.dialog != nil {
			var cmd tea.Cmd
			a.dialog, cmd = a.dialog.Update(msg)
			return a, cmd
		}
		return a.handleKey(msg)
	}
	if a.dialog != nil {
		var cmd tea.Cmd
		a.dialog, cmd = a.dialog.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		a.quitting = true
		return a, tea.Quit
	case "v":
		if a.mode == ViewList {
			a.mode = ViewGraph
		} else {
			a.mode = ViewList
		}
		return a, nil
	case "r":
		return a, a.fetch()
	case "n":
		a.dialog = NewDialog()
		a.dialog.SetWidth(min(a.width, 70))
		return a, nil
	case "e", "enter":
		if t, ok := a.selectedTask(); ok {
			a.dialog = NewEditDialog(t)
			a.dialog.SetWidth(min(a.width, 70))
		}
		return a, nil
	case "d", "delete":
		t, ok := a.selectedTask()
		if !ok {
			return a, nil
		}
		id := t.ID
		return a, a.mutate(func(ctx context.Context) error {
			return a.store.Delete(ctx, id)
		})
	}
	if a.mode == ViewList {
		switch msg.String() {
		case "up", "k":
			a.moveSelection(-1)
		case "down", "j":
			a.moveSelection(1)
		}
		return a, nil
	}
	switch msg.String() {
	case "tab":
		a.moveSelection(1)
	case "shift+tab":
		a.moveSelection(-1)
	case "up":
		a.drag(0, -1)
	case "down":
		a.drag(0, 1)
	case "left":
		a.drag(-1, 0)
	case "right":
		a.drag(1, 0)
	}
	return a, nil
}

// applySnapshot reprojects only when a fetch completed, so failed mutations
// leave the layout and any dragged positions alone.
func (a *App) applySnapshot(snap store.Snapshot) {
	a.snap = snap
	if !snap.FetchedAt.IsZero() && !snap.FetchedAt.Equal(a.fetchedAt) {
		a.fetchedAt = snap.FetchedAt
		a.projection = a.projector.Project(snap.Tasks)
	}
	if _, ok := a.selectedTask(); !ok {
		a.selectedID = 0
		if len(a.snap.Tasks) > 0 {
			a.selectedID = a.snap.Tasks[0].ID
		}
	}
}

func (a *App) selectedTask() (domain.Task, bool) {
	for _, t := range a.snap.Tasks {
		if t.ID == a.selectedID && a.selectedID != 0 {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (a *App) moveSelection(delta int) {
	tasks := a.snap.Tasks
	if len(tasks) == 0 {
		return
	}
	idx := 0
	for i, t := range tasks {
		if t.ID == a.selectedID {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(tasks)) % len(tasks)
	a.selectedID = tasks[idx].ID
}

// drag moves the selected node by one canvas cell.
func (a *App) drag(dx, dy int) {
	if a.selectedID == 0 {
		return
	}
	c := a.canvas()
	b := c.Bounds
	stepX := b.Width / float64(max(1, c.Cols-1))
	stepY := b.Height / float64(max(1, c.Rows-1))
	a.projection.Move(graph.NodeID(a.selectedID), float64(dx)*stepX, float64(dy)*stepY)
}

func (a *App) canvas() graph.Canvas {
	bounds := a.projector.Bounds
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = graph.DefaultBounds
	}
	return graph.Canvas{
		Cols:   max(20, a.width-4),
		Rows:   max(5, a.height-8),
		Bounds: bounds,
	}
}

// Mode returns the active view.
func (a *App) Mode() ViewMode { return a.mode }

// Projection returns the projection currently drawn by the graph view.
func (a *App) Projection() graph.Projection { return a.projection }

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(a.header())
	b.WriteString("\n\n")
	switch {
	case a.dialog != nil:
		b.WriteString(a.dialog.View())
	case a.mode == ViewGraph:
		b.WriteString(a.graphView())
	default:
		b.WriteString(a.listView())
	}
	b.WriteString("\n")
	if sb := a.snackbar.View(); sb != "" {
		b.WriteString(sb)
		b.WriteString("\n")
	}
	b.WriteString(a.footer())
	return lipgloss.NewStyle().MaxWidth(a.width).Render(b.String())
}

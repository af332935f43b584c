package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskgraph/internal/domain"
)

// DialogSubmittedMsg is sent when the dialog is confirmed with valid input.
// TaskID is zero for a new task.
type DialogSubmittedMsg struct {
	TaskID int64
	Fields domain.TaskFields
}

// DialogCancelledMsg is sent when the dialog is dismissed.
type DialogCancelledMsg struct{}

const (
	fieldTitle = iota
	fieldDescription
	fieldParent
	fieldStatus
	fieldCount
)

// Dialog is the create/edit form.
type Dialog struct {
	taskID   int64
	position *domain.Position
	inputs   [fieldStatus]textinput.Model
	status   domain.Status
	focus    int
	err      string
	width    int

	boxStyle   lipgloss.Style
	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	focusStyle lipgloss.Style
	errStyle   lipgloss.Style
}

// NewDialog opens an empty form for a new task.
func NewDialog() *Dialog {
	d := &Dialog{
		status: domain.StatusTodo,
		width:  60,
		boxStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1),
		titleStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		labelStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(13),
		focusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Width(13),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	placeholders := [fieldStatus]string{"required", "optional", "blank for none"}
	for i := range d.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 500
		ti.Width = 40
		d.inputs[i] = ti
	}
	d.inputs[fieldParent].CharLimit = 19
	d.inputs[fieldTitle].Focus()
	return d
}

// NewEditDialog opens the form pre-filled with t.
func NewEditDialog(t domain.Task) *Dialog {
	d := NewDialog()
	d.taskID = t.ID
	d.position = t.Position
	d.inputs[fieldTitle].SetValue(t.Title)
	d.inputs[fieldDescription].SetValue(t.Description)
	if t.HasParent() {
		d.inputs[fieldParent].SetValue(strconv.FormatInt(*t.ParentID, 10))
	}
	if t.Status != "" {
		d.status = t.Status
	}
	return d
}

func (d *Dialog) Editing() bool { return d.taskID != 0 }

// SetWidth sets the outer width of the dialog box.
func (d *Dialog) SetWidth(width int) {
	d.width = width
	for i := range d.inputs {
		d.inputs[i].Width = max(10, width-20)
	}
}

// Update handles keys while the dialog is open.
func (d *Dialog) Update(msg tea.Msg) (*Dialog, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return d, func() tea.Msg { return DialogCancelledMsg{} }
		case "enter":
			fields, err := d.fields()
			if err != nil {
				d.err = err.Error()
				return d, nil
			}
			id := d.taskID
			return d, func() tea.Msg { return DialogSubmittedMsg{TaskID: id, Fields: fields} }
		case "tab", "down":
			return d, d.setFocus((d.focus + 1) % fieldCount)
		case "shift+tab", "up":
			return d, d.setFocus((d.focus + fieldCount - 1) % fieldCount)
		}
		if d.focus == fieldStatus {
			switch key.String() {
			case " ", "right", "l":
				d.status = d.status.Next()
			case "left", "h":
				d.status = d.status.Next().Next()
			}
			return d, nil
		}
	}
	if d.focus == fieldStatus {
		return d, nil
	}
	var cmd tea.Cmd
	d.inputs[d.focus], cmd = d.inputs[d.focus].Update(msg)
	return d, cmd
}

func (d *Dialog) setFocus(i int) tea.Cmd {
	d.focus = i
	var cmd tea.Cmd
	for j := range d.inputs {
		if j == i {
			cmd = d.inputs[j].Focus()
		} else {
			d.inputs[j].Blur()
		}
	}
	return cmd
}

// fields validates the form. Title is required; parent must be blank or a
// non-negative integer.
func (d *Dialog) fields() (domain.TaskFields, error) {
	title := strings.TrimSpace(d.inputs[fieldTitle].Value())
	if title == "" {
		return domain.TaskFields{}, fmt.Errorf("title is required")
	}
	f := domain.TaskFields{
		Title:       title,
		Description: strings.TrimSpace(d.inputs[fieldDescription].Value()),
		Status:      d.status,
		Position:    d.position,
	}
	if raw := strings.TrimSpace(d.inputs[fieldParent].Value()); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return domain.TaskFields{}, fmt.Errorf("parent id must be a task number")
		}
		if id != 0 {
			f.ParentID = &id
		}
	}
	return f, nil
}

func (d *Dialog) View() string {
	var b strings.Builder
	heading := "New task"
	if d.Editing() {
		heading = fmt.Sprintf("Edit task #%d", d.taskID)
	}
	b.WriteString(d.titleStyle.Render(heading))
	b.WriteString("\n\n")
	labels := [fieldCount]string{"Title", "Description", "Parent ID", "Status"}
	for i, label := range labels {
		style := d.labelStyle
		if i == d.focus {
			style = d.focusStyle
		}
		b.WriteString(style.Render(label))
		if i == fieldStatus {
			b.WriteString(statusStyle(d.status).Render(string(d.status)))
			if d.focus == fieldStatus {
				b.WriteString(d.labelStyle.UnsetWidth().Render("  ←/→ to change"))
			}
		} else {
			b.WriteString(d.inputs[i].View())
		}
		b.WriteString("\n")
	}
	if d.err != "" {
		b.WriteString("\n")
		b.WriteString(d.errStyle.Render(d.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(d.labelStyle.UnsetWidth().Render("enter save · esc cancel · tab next field"))
	return d.boxStyle.Width(d.width - 2).Render(b.String())
}

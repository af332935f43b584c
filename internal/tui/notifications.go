package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskgraph/internal/store"
)

const (
	defaultNotifyDuration = 6 * time.Second
	notifyQueueSize       = 16
)

// Notifications bridges store notifications, raised on command goroutines,
// into the bubbletea update loop.
type Notifications struct {
	mu    sync.Mutex
	queue []store.Notification
	limit int
	ready chan struct{}
}

func NewNotifications() *Notifications {
	return &Notifications{limit: notifyQueueSize, ready: make(chan struct{}, 1)}
}

// Notify implements store.Notifier. It never blocks. When the queue is full
// the oldest success notification is dropped; the oldest error goes only when
// every queued notification is an error.
func (n *Notifications) Notify(note store.Notification) {
	n.mu.Lock()
	n.queue = append(n.queue, note)
	if len(n.queue) > n.limit {
		drop := 0
		for i, q := range n.queue {
			if q.Severity != store.SeverityError {
				drop = i
				break
			}
		}
		n.queue = append(n.queue[:drop], n.queue[drop+1:]...)
	}
	n.mu.Unlock()
	n.signal()
}

func (n *Notifications) signal() {
	select {
	case n.ready <- struct{}{}:
	default:
	}
}

func (n *Notifications) pop() (store.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		return store.Notification{}, false
	}
	note := n.queue[0]
	n.queue = n.queue[1:]
	return note, true
}

// NotificationMsg carries one store notification into Update.
type NotificationMsg struct {
	Note store.Notification
}

func (n *Notifications) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if note, ok := n.pop(); ok {
				return NotificationMsg{Note: note}
			}
			<-n.ready
		}
	}
}

type hideSnackbarMsg struct {
	seq int
}

// Snackbar shows the latest notification until its timer fires. A newer
// notification replaces the current one and restarts the timer.
type Snackbar struct {
	note     store.Notification
	visible  bool
	seq      int
	duration time.Duration

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
}

func NewSnackbar(d time.Duration) Snackbar {
	if d <= 0 {
		d = defaultNotifyDuration
	}
	return Snackbar{
		duration: d,
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28")).
			Padding(0, 1),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1),
	}
}

// Show displays note and returns the auto-hide timer.
func (s *Snackbar) Show(note store.Notification) tea.Cmd {
	s.note = note
	s.visible = true
	s.seq++
	seq := s.seq
	return tea.Tick(s.duration, func(time.Time) tea.Msg {
		return hideSnackbarMsg{seq: seq}
	})
}

func (s *Snackbar) hide(msg hideSnackbarMsg) {
	// Stale timers from replaced notifications are ignored.
	if msg.seq == s.seq {
		s.visible = false
	}
}

func (s Snackbar) Visible() bool { return s.visible }

func (s Snackbar) Message() string {
	if !s.visible {
		return ""
	}
	return s.note.Message
}

func (s Snackbar) View() string {
	if !s.visible {
		return ""
	}
	if s.note.Severity == store.SeverityError {
		return s.errorStyle.Render("✗ " + s.note.Message)
	}
	return s.successStyle.Render("✓ " + s.note.Message)
}

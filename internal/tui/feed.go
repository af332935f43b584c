package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"taskgraph/internal/store"
)

// snapshotFeed carries store state changes into the update loop. Only the
// newest pending snapshot is kept; listeners that fire out of order cannot
// replace a newer snapshot with an older one.
type snapshotFeed struct {
	mu      sync.Mutex
	pending *store.Snapshot
	lastSeq uint64
	ready   chan struct{}
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ready: make(chan struct{}, 1)}
}

// push is registered with store.Subscribe.
func (f *snapshotFeed) push(snap store.Snapshot) {
	f.mu.Lock()
	if snap.Seq <= f.lastSeq {
		f.mu.Unlock()
		return
	}
	f.lastSeq = snap.Seq
	f.pending = &snap
	f.mu.Unlock()
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *snapshotFeed) take() (store.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return store.Snapshot{}, false
	}
	snap := *f.pending
	f.pending = nil
	return snap, true
}

func (f *snapshotFeed) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if snap, ok := f.take(); ok {
				return SnapshotMsg{Snapshot: snap}
			}
			<-f.ready
		}
	}
}

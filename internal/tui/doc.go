// Package tui is the interactive terminal front end for the task API.
//
// The model keeps no task state of its own: every fetch and mutation goes
// through store.Store, and the view is rebuilt from the store snapshot after
// each operation. Two views share one selection:
//   - the list view shows one row per task
//   - the graph view draws the parent/child forest on a character canvas
//
// Nodes can be dragged in the graph view with the arrow keys. Dragged
// positions live in the current projection only; the next fetch replaces
// them.
//
// Usage:
//
//	notes := tui.NewNotifications()
//	ac, _ := app.New(cfg, notes, logger)
//	model := tui.New(ctx, ac.Store, ac.Projector, notes, tui.Options{})
//	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
package tui

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgraph/internal/app"
	"taskgraph/internal/ctxlog"
	"taskgraph/internal/domain"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks through the API",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskTreeCmd())
	return task
}

// withApp builds the client-side stack from config. Store notifications go
// to stderr.
func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ac, err := app.New(cfg, cliNotifier{}, ctxlog.FromContext(ctx))
	if err != nil {
		return err
	}
	return fn(ctx, ac)
}

func taskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				tasks, err := ac.Store.FetchAll(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Parent", "Description"})
				for _, t := range tasks {
					parent := ""
					if t.HasParent() {
						parent = strconv.FormatInt(*t.ParentID, 10)
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, parent, t.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				t, err := ac.Client.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(app.FromSDK(t))
			})
		},
	}
	return cmd
}

type taskFlags struct {
	title       string
	description string
	parent      int64
	status      string
	x, y        float64
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().Int64Var(&f.parent, "parent", 0, "parent task id (0 for none)")
	cmd.Flags().StringVar(&f.status, "status", "", "todo, in_progress or done")
	cmd.Flags().Float64Var(&f.x, "x", 0, "graph x position")
	cmd.Flags().Float64Var(&f.y, "y", 0, "graph y position")
}

// apply overlays the flags the user set on base.
func (f *taskFlags) apply(cmd *cobra.Command, base domain.TaskFields) (domain.TaskFields, error) {
	changed := cmd.Flags().Changed
	if changed("title") {
		base.Title = f.title
	}
	if changed("description") {
		base.Description = f.description
	}
	if changed("parent") {
		base.ParentID = nil
		if f.parent != 0 {
			p := f.parent
			base.ParentID = &p
		}
	}
	if changed("status") {
		st, err := domain.ParseStatus(f.status)
		if err != nil {
			return base, err
		}
		base.Status = st
	}
	if changed("x") || changed("y") {
		pos := domain.Position{}
		if base.Position != nil {
			pos = *base.Position
		}
		if changed("x") {
			pos.X = f.x
		}
		if changed("y") {
			pos.Y = f.y
		}
		base.Position = &pos
	}
	return base, nil
}

func taskCreateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := f.apply(cmd, domain.TaskFields{Status: domain.StatusTodo})
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				t, err := ac.Store.Create(ctx, fields)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long:  "Fetches the task, overlays the flags that were set and sends the full field set back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				current, err := ac.Client.GetTask(ctx, id)
				if err != nil {
					return err
				}
				fields, err := f.apply(cmd, app.FromSDK(current).Fields())
				if err != nil {
					return err
				}
				t, err := ac.Store.Update(ctx, id, fields)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				return ac.Store.Delete(ctx, id)
			})
		},
	}
	return cmd
}

func taskTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the task forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				tasks, err := ac.Store.FetchAll(ctx)
				if err != nil {
					return err
				}
				roots, children := buildForest(tasks)
				if viper.GetBool("json") {
					type Node struct {
						Task     domain.Task `json:"task"`
						Children []Node      `json:"children,omitempty"`
					}
					var build func(t domain.Task) Node
					build = func(t domain.Task) Node {
						var childNodes []Node
						for _, c := range children[t.ID] {
							childNodes = append(childNodes, build(c))
						}
						return Node{Task: t, Children: childNodes}
					}
					treeNodes := []Node{}
					for _, r := range roots {
						treeNodes = append(treeNodes, build(r))
					}
					return printJSON(treeNodes)
				}
				for i, r := range roots {
					printTaskTree(r, children, "", i == len(roots)-1)
				}
				return nil
			})
		},
	}
	return cmd
}

// buildForest groups tasks by parent. Tasks whose parent is not in the list
// are shown as roots.
func buildForest(tasks []domain.Task) ([]domain.Task, map[int64][]domain.Task) {
	present := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}
	children := map[int64][]domain.Task{}
	var roots []domain.Task
	for _, t := range tasks {
		if t.HasParent() && present[*t.ParentID] {
			children[*t.ParentID] = append(children[*t.ParentID], t)
		} else {
			roots = append(roots, t)
		}
	}
	return roots, children
}

func printTaskTree(t domain.Task, children map[int64][]domain.Task, prefix string, last bool) {
	connector := "├── "
	newPrefix := prefix + "│   "
	if last {
		connector = "└── "
		newPrefix = prefix + "    "
	}
	fmt.Printf("%s%s#%d %s [%s]\n", prefix, connector, t.ID, t.Title, t.Status)
	for i, c := range children[t.ID] {
		printTaskTree(c, children, newPrefix, i == len(children[t.ID])-1)
	}
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

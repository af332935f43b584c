package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgraph/internal/app"
	"taskgraph/internal/graph"
)

func graphCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Project tasks into graph nodes and edges",
		Long: `Fetches all tasks and prints the graph projection. Tasks without a stored
position get a random one on every run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				format = "json"
			}
			switch format {
			case "table", "json", "dot":
			default:
				return fmt.Errorf("unknown format %q (want table, json or dot)", format)
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				tasks, err := ac.Store.FetchAll(ctx)
				if err != nil {
					return err
				}
				p := ac.Projector.Project(tasks)
				switch format {
				case "json":
					return printJSON(p)
				case "dot":
					return graph.WriteDOT(os.Stdout, p)
				}
				nodes := table.NewWriter()
				nodes.SetOutputMirror(os.Stdout)
				nodes.SetTitle("Nodes")
				nodes.AppendHeader(table.Row{"ID", "Label", "X", "Y", "Pinned"})
				for _, n := range p.Nodes {
					nodes.AppendRow(table.Row{n.ID, n.Label, fmt.Sprintf("%.1f", n.Position.X), fmt.Sprintf("%.1f", n.Position.Y), n.Pinned})
				}
				nodes.Render()
				dangling := map[string]bool{}
				for _, e := range p.Dangling {
					dangling[e.ID] = true
				}
				edges := table.NewWriter()
				edges.SetOutputMirror(os.Stdout)
				edges.SetTitle("Edges")
				edges.AppendHeader(table.Row{"ID", "Source", "Target", "Dangling"})
				for _, e := range p.Edges {
					edges.AppendRow(table.Row{e.ID, e.Source, e.Target, dangling[e.ID]})
				}
				edges.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json or dot")
	return cmd
}

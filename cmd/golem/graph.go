package main

import (
	"fmt"

	"github.com/aretw0/golem/internal/cli"
	"github.com/aretw0/golem/internal/presentation/graph"
	"github.com/aretw0/golem/pkg/registry"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the flows as a Mermaid flowchart",
	Long: `Renders every flow as a Mermaid subgraph. With --session, the states the
session visited are highlighted and its current state is marked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		source, _ := cmd.Flags().GetString("flows")

		if sessionID == "" {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			reg, err := cli.LoadFlows(cmd.Context(), cfg, source, registry.NewRegistry())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(reg, nil))
			return nil
		}

		app, err := build(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		snap, err := app.Bot.Inspect(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("loading session '%s': %w", sessionID, err)
		}
		overlay := &graph.Overlay{Current: snap.State}
		if snap.Context != nil {
			for _, h := range snap.Context.History {
				overlay.Visited = append(overlay.Visited, h.Name)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(app.Flows, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of this session")
}

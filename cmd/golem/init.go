package main

import (
	"fmt"

	"github.com/aretw0/golem/pkg/adapters/loam"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter bot as state documents",
	Long: `Creates a directory of Markdown state documents with a greeting,
a help state and a small billing flow. Point --flows (or flows_dir) at it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "flows"
		if len(args) > 0 {
			dir = args[0]
		}
		if err := loam.Scaffold(cmd.Context(), dir, loam.Starter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d states to %s\n", len(loam.Starter), dir)
		fmt.Fprintf(cmd.OutOrStdout(), "Try: golem chat --flows %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/aretw0/golem/internal/cli"
	"github.com/aretw0/golem/pkg/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check the flows for consistency",
	Long: `Loads the flows and reports missing roots, unknown actions and malformed documents.
With --watch, a directory of state documents is checked again on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("flows")
		if len(args) > 0 {
			source = args[0]
		}
		actions := registry.NewRegistry()

		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			dir := source
			if dir == "" {
				dir = cfg.FlowsDir
			}
			if dir == "" {
				return fmt.Errorf("--watch needs a directory of state documents")
			}
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			return cli.Watch(sigCtx, dir, actions, os.Stdout, logger)
		}

		reg, err := cli.LoadFlows(cmd.Context(), cfg, source, actions)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		cli.PrintFlows(os.Stdout, reg)
		if err := cli.CheckFlows(os.Stdout, reg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Println("Flows are valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Validate again whenever a document changes")
}

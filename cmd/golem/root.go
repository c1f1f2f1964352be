package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/golem"
	"github.com/aretw0/golem/internal/cli"
	"github.com/aretw0/golem/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "golem",
	Short: "golem runs dialog state-machine chat bots",
	Long: `golem drives multi-turn chat-bot conversations from declarative flows.
Flows are read from YAML files or from a directory of Markdown state documents.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().String("flows", "", "Flow YAML file or state document directory, overrides the configuration")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// setup loads the configuration and logger shared by the commands.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cli.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := cli.NewLogger(cfg, level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// build wires a bot from the command flags.
func build(ctx context.Context, cmd *cobra.Command, opts ...golem.Option) (*cli.App, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	source, _ := cmd.Flags().GetString("flows")
	return cli.Build(ctx, cfg, logger, source, opts...)
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Long:  `Lists the sessions held by the configured store. Use "sessions inspect <id>" to read one.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := build(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Bot.Sessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No active sessions found.")
			return nil
		}
		fmt.Println("Active Sessions:")
		for _, id := range ids {
			fmt.Println("- " + id)
		}
		return nil
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the state and context of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := build(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		snap, err := app.Bot.Inspect(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading session '%s': %w", args[0], err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the logged turns of a session (sqlite storage)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := build(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if app.TurnLog == nil {
			return fmt.Errorf("turn history needs the sqlite storage driver")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		turns, err := app.TurnLog.Turns(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		for _, t := range turns {
			fmt.Printf("%s  %-9s %s -> %s  %v", t.AcceptedAt.Format("2006-01-02 15:04:05"), t.Type, t.FromState, t.ToState, t.Duration)
			if t.Error != "" {
				fmt.Printf("  error: %s", t.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <session-id>...",
	Short: "Forget one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := build(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		failed := 0
		for _, id := range args {
			if err := app.Bot.Clear(cmd.Context(), id); err != nil {
				fmt.Fprintf(os.Stderr, "Error clearing '%s': %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Cleared session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be cleared", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(clearCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsHistoryCmd)
	sessionsHistoryCmd.Flags().Int("limit", 50, "Most recent turns to print")
}

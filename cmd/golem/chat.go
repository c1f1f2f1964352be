package main

import (
	"os"

	"github.com/aretw0/golem"
	"github.com/aretw0/golem/internal/cli"
	"github.com/aretw0/golem/pkg/channel"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot in the terminal",
	Long: `Starts an interactive conversation on the console channel.
Type free text, or /set name=value, /goto flow.state, /state, /reset and /quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		trace, _ := cmd.Flags().GetBool("trace")
		plain, _ := cmd.Flags().GetBool("plain")
		consoleOpts := []channel.ConsoleOption{channel.WithStateTrace(trace)}
		if plain {
			consoleOpts = append(consoleOpts, channel.WithPlainOutput())
		}
		console := channel.NewConsole(os.Stdout, consoleOpts...)

		app, err := build(sigCtx, cmd, golem.WithChannels(console))
		if err != nil {
			return err
		}
		defer app.Close()

		chatID, _ := cmd.Flags().GetString("session")
		fresh, _ := cmd.Flags().GetBool("fresh")

		console.Banner(app.Flows.Default().Name)
		return cli.Chat(sigCtx, app, cli.ChatOptions{
			SessionID: console.Prefix() + "_" + chatID,
			Fresh:     fresh,
			In:        os.Stdin,
			Out:       os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("session", "local", "Chat id of the console session")
	chatCmd.Flags().Bool("fresh", false, "Forget the session before starting")
	chatCmd.Flags().Bool("trace", false, "Print state changes")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and colors")
}

package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/golem"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of golem",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("golem version %s\n", strings.TrimSpace(golem.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"fmt"
	"os"

	"musaix/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "musaix",
	Short: "Musaix is an audio analysis and similarity search service.",
	Run: func(cmd *cobra.Command, args []string) {
		// Running without a subcommand starts the server.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

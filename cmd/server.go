package cmd

import (
	"musaix/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Musaix HTTP server",
	Long:  `Start the Musaix HTTP server: upload ingestion, analysis callbacks, similarity search and realtime result subscriptions.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

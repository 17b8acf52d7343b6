package cmd

import (
	"soundscape/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the soundscape API server",
	Long:  `Start the HTTP server that accepts geo-tagged audio uploads and serves the recording catalog and web map.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

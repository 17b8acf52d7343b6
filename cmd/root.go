package cmd

import (
	"fmt"
	"os"

	"soundscape/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "soundscape",
	Short: "Soundscape is a crowd-sourced geo-tagged audio archive.",
	Run: func(cmd *cobra.Command, args []string) {
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

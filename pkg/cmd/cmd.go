// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "histvault",
		Short: "Per-file version history with local snapshots and cloud sync",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	registerConfigsCommands()
	registerDBCommands()
	registerServeCommands()
	registerAgentCommands()
	registerLoginCommands()
	registerRestoreCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/histvault/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.NewApp(configPath).Run()
	},
}

// registerServeCommands 注册服务端命令.
func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}

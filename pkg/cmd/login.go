package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/vsync"
)

var deviceName string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "authorize this device against the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.InitConfig(configPath); err != nil {
			return err
		}

		cfg := configs.GetConfig()

		if deviceName == "" {
			host, err := os.Hostname()
			if err != nil {
				host = "unknown-device"
			}

			deviceName = host
		}

		err := vsync.Login(cmd.Context(), cfg.Sync.ServerURL, cfg.Sync.CredentialsPath, deviceName,
			afero.NewOsFs(), func(userCode, verificationURI string) {
				fmt.Fprintln(cmd.OutOrStdout(), "To authorize this device, open:")
				fmt.Fprintln(cmd.OutOrStdout(), "  "+verificationURI)
				fmt.Fprintln(cmd.OutOrStdout(), "and enter code: "+userCode)
				fmt.Fprintln(cmd.OutOrStdout(), "Waiting for confirmation...")
			})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Credentials saved to "+cfg.Sync.CredentialsPath)

		return nil
	},
}

// registerLoginCommands 注册登录命令.
func registerLoginCommands() {
	loginCmd.Flags().StringVar(&deviceName, "device-name", "", "device name shown on the server (defaults to hostname)")

	rootCmd.AddCommand(loginCmd)
}

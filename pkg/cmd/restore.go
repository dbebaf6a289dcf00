package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/log"
)

var restoreAt string

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "restore a file to a recorded version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		target := restoreAt

		if target == "" {
			store := engine.Store()

			file, err := store.GetFileByPath(args[0])
			if err != nil {
				return err
			}

			latest, err := store.LatestVersion(file.ID)
			if err != nil {
				return err
			}

			target = latest.ID
		}

		// 历史键是相对保险库根的路径，写回也锚定到根，
		// 与命令在哪个目录下执行无关
		vaultFs := afero.NewBasePathFs(afero.NewOsFs(), configs.GetConfig().History.VaultDir)

		if err := engine.Restore(cmd.Context(), vaultFs, args[0], target); err != nil {
			return err
		}

		if err := engine.Store().Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to version %s\n", args[0], target)

		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <path>",
	Short: "list recorded versions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		store := engine.Store()

		file, err := store.GetFileByPath(args[0])
		if err != nil {
			return err
		}

		summaries, err := store.VersionSummaries(file.ID)
		if err != nil {
			return err
		}

		for _, s := range summaries {
			kind := "diff"
			if s.IsCheckpoint {
				kind = "checkpoint"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %s\n", s.ID, kind, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}

		return nil
	},
}

// openEngine 打开本地历史存储并构造引擎，restore/versions 共用.
func openEngine() (*history.Engine, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, err
	}

	cfg := configs.GetConfig()
	l := log.Logger()

	store, err := history.NewStore(afero.NewOsFs(), cfg.History.StorePath, *l)
	if err != nil {
		return nil, err
	}

	return history.NewEngine(store, *l), nil
}

// registerRestoreCommands 注册历史查询与恢复命令.
func registerRestoreCommands() {
	restoreCmd.Flags().StringVar(&restoreAt, "at", "", "version id to restore (defaults to the latest)")

	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(versionsCmd)
}

package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/jobs"
	"github.com/yeisme/histvault/pkg/internal/vsync"
	"github.com/yeisme/histvault/pkg/internal/watcher"
	"github.com/yeisme/histvault/pkg/log"
	"github.com/yeisme/histvault/pkg/scheduler"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "watch the vault directory and record version history",
	RunE:  runAgent,
}

// registerAgentCommands 注册代理命令.
func registerAgentCommands() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	if err := configs.InitConfig(configPath); err != nil {
		return err
	}

	cfg := configs.GetConfig()
	l := log.Logger()
	osFs := afero.NewOsFs()

	store, err := history.NewStore(osFs, cfg.History.StorePath, *l)
	if err != nil {
		return err
	}

	engine := history.NewEngine(store, *l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动时全量扫描一遍，把 agent 停机期间的改动补进历史
	if err := initialScan(ctx, engine, osFs, cfg.History.VaultDir); err != nil {
		l.Warn().Err(err).Msg("initial scan incomplete")
	}

	if err := store.Flush(); err != nil {
		l.Error().Err(err).Msg("flush after initial scan failed")
	}

	syncer := buildSyncer(ctx, store, cfg, osFs)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return err
	}

	if err := jobs.RegisterAgentJobs(sched, engine, syncer, cfg); err != nil {
		return err
	}

	w, err := watcher.New(engine, osFs, cfg.History.VaultDir, *l)
	if err != nil {
		return err
	}

	sched.Start()

	l.Info().
		Str("vault_dir", cfg.History.VaultDir).
		Str("store", cfg.History.StorePath).
		Bool("sync", syncer != nil).
		Msg("agent started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gctx)
	})

	err = g.Wait()

	if cerr := w.Close(); cerr != nil {
		l.Warn().Err(cerr).Msg("close watcher failed")
	}

	if serr := sched.Stop(); serr != nil {
		l.Warn().Err(serr).Msg("stop scheduler failed")
	}

	if ferr := store.Flush(); ferr != nil {
		l.Error().Err(ferr).Msg("final flush failed")
	}

	if errors.Is(err, context.Canceled) {
		l.Info().Msg("agent stopped")

		return nil
	}

	return err
}

// buildSyncer 构造云同步器.未启用、未登录或服务端不可达时返回 nil，
// agent 继续以纯本地模式工作.
func buildSyncer(ctx context.Context, store *history.Store, cfg *configs.AppConfig, osFs afero.Fs) *vsync.Syncer {
	l := log.Logger()

	if !cfg.Sync.Enabled {
		return nil
	}

	client, err := vsync.NewClient(&cfg.Sync, &cfg.Breaker, osFs, *l)
	if err != nil {
		if errors.Is(err, vsync.ErrReauthRequired) {
			l.Warn().Msg("cloud sync enabled but not logged in, run 'histvault login'")
		} else {
			l.Warn().Err(err).Msg("cloud sync unavailable")
		}

		return nil
	}

	syncer, err := vsync.NewSyncer(ctx, client, store, &cfg.Sync, cfg.History.VaultName, *l)
	if err != nil {
		l.Warn().Err(err).Msg("cloud sync setup failed, continuing local-only")

		return nil
	}

	return syncer
}

// initialScan 把目录下现有的文本文件逐个喂给 Save.未变化的文件是
// no-op，所以重复扫描不会膨胀历史.
func initialScan(ctx context.Context, engine *history.Engine, osFs afero.Fs, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		data, err := afero.ReadFile(osFs, path)
		if err != nil || !utf8.Valid(data) {
			return nil
		}

		_, err = engine.Save(ctx, filepath.ToSlash(rel), string(data))

		return err
	})
}

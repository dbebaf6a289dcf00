// Package jobs 负责注册与实现代理进程的定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/vsync"
	"github.com/yeisme/histvault/pkg/log"
	"github.com/yeisme/histvault/pkg/scheduler"
)

// RegisterAgentJobs 配置代理进程的周期任务：
//   - 按配置间隔执行快照合并（启动时先跑一轮，压掉上次会话攒下的增量）
//   - 启用云同步时按配置间隔批量上传本地未同步版本
//   - 每分钟对照一次配置，间隔变更时原地替换任务
//
// syncer 为 nil 表示云同步未启用或尚未登录.
func RegisterAgentJobs(sched *scheduler.Scheduler, engine *history.Engine, syncer *vsync.Syncer, cfg *configs.AppConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if engine == nil {
		return fmt.Errorf("history engine is nil")
	}

	baseCtx := context.Background()

	snapshotJob := func(ctx context.Context) {
		runSnapshotPass(ctx, engine)
	}

	if err := sched.AddInterval(JobSnapshotDaemon, cfg.History.SnapshotIntervalDuration(), true, snapshotJob, baseCtx); err != nil {
		return fmt.Errorf("register snapshot job: %w", err)
	}

	var syncJob func(ctx context.Context)

	if syncer != nil {
		syncJob = func(ctx context.Context) {
			runSyncPass(ctx, syncer)
		}

		if err := sched.AddInterval(JobCloudSync, cfg.Sync.IntervalDuration(), false, syncJob, baseCtx); err != nil {
			return fmt.Errorf("register sync job: %w", err)
		}
	}

	// 配置热加载后间隔可能变化，定期对照并原地替换.
	// ReplaceInterval 对未变化的间隔是 no-op
	watch := func(ctx context.Context) {
		cur := configs.GetConfig()

		if err := sched.ReplaceInterval(JobSnapshotDaemon, cur.History.SnapshotIntervalDuration(), false, snapshotJob, baseCtx); err != nil {
			log.Logger().Warn().Err(err).Msg("replace snapshot job failed")
		}

		if syncJob != nil {
			if err := sched.ReplaceInterval(JobCloudSync, cur.Sync.IntervalDuration(), false, syncJob, baseCtx); err != nil {
				log.Logger().Warn().Err(err).Msg("replace sync job failed")
			}
		}
	}

	return sched.AddInterval(JobConfigWatch, configWatchInterval, false, watch, baseCtx)
}

func runSnapshotPass(ctx context.Context, engine *history.Engine) {
	l := log.Logger().With().Str("job", JobSnapshotDaemon).Logger()
	l.Debug().Msg("snapshot pass started")

	engine.SnapshotPass(ctx)
}

func runSyncPass(ctx context.Context, syncer *vsync.Syncer) {
	l := log.Logger().With().Str("job", JobCloudSync).Logger()

	if err := syncer.SyncPass(ctx); err != nil {
		l.Warn().Err(err).Msg("sync pass failed")
		return
	}

	l.Debug().Msg("sync pass finished")
}

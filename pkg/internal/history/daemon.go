package history

import (
	"context"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SnapshotPass 对每个未删除文件执行一轮合并：
//   - 最新版本已是检查点的文件跳过（无可合并）
//   - 否则重建当前内容，作为新检查点插入（时间戳严格晚于它合并的增量），
//     然后修剪检查点：除首版本与刚插入者外全部删除
//
// 每个文件最多保留两个检查点（首个+最新），限住合并带来的存储增长；
// 合并之间的增量行不动，旧时间点仍可退回首检查点回放更长的链完成重建.
// 守护任务由调度器以单例模式驱动，自身绝不重叠执行.
func (e *Engine) SnapshotPass(ctx context.Context) {
	files := e.store.AllFiles()

	var inserted, pruned int

	for _, f := range files {
		if f.Deleted() {
			continue
		}

		if err := ctx.Err(); err != nil {
			return
		}

		n, err := e.consolidateFile(ctx, f.ID, f.Path)
		if err != nil {
			e.logger.Error().Err(err).Str("path", f.Path).Msg("snapshot consolidation failed")
			continue
		}

		if n >= 0 {
			inserted++
			pruned += n
		}
	}

	// Flush 未脏时是 no-op，所以无条件调用：本轮没插检查点
	// 但别处攒下的脏状态也一并落盘
	if err := e.store.Flush(); err != nil {
		e.logger.Error().Err(err).Msg("flush after snapshot pass failed")
	}

	e.logger.Debug().Int("checkpoints", inserted).Int("pruned", pruned).Msg("snapshot pass done")
}

// consolidateFile 合并单个文件的增量尾部. 与 Save 共用同一把文件锁.
// 返回修剪的检查点数；无事可做时返回 -1.
func (e *Engine) consolidateFile(ctx context.Context, fileID, path string) (int, error) {
	mu := e.lockPath(path)
	mu.Lock()
	defer mu.Unlock()

	latest, err := e.store.LatestVersion(fileID)
	if errors.Is(err, ErrNotFound) {
		return -1, nil
	} else if err != nil {
		return -1, err
	}

	if latest.Payload.IsCheckpoint() {
		return -1, nil
	}

	content, err := Reconstruct(ctx, storeSource{s: e.store}, fileID, latest.ID, e.logger)
	if err != nil {
		return -1, err
	}

	now := time.Now().UTC()
	ckpt := &VersionRecord{
		ID:        NewID(now),
		FileID:    fileID,
		Payload:   CheckpointPayload(content),
		Hash:      xxhash.Sum64String(content),
		CreatedAt: now,
	}

	if err := e.store.InsertVersion(ckpt); err != nil {
		return -1, err
	}

	pruned, err := e.store.PruneCheckpoints(fileID, ckpt.ID)
	if err != nil {
		return -1, err
	}

	return pruned, nil
}

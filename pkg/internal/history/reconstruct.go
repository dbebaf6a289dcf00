package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yeisme/histvault/pkg/internal/patch"
)

// VersionSource 是重建算法需要的最小读取面. 本地 Store 与服务端的
// 数据库存储都实现它，两端共用同一套最近检查点+增量回放算法.
type VersionSource interface {
	// NearestCheckpoint 返回版本 ID ≤ atOrBefore 的最近检查点；
	// 不存在时返回 ErrNotFound.
	NearestCheckpoint(fileID, atOrBefore string) (*VersionRecord, error)
	// VersionsInRange 返回版本 ID 落在 (after, through] 内的版本，升序.
	VersionsInRange(fileID, after, through string) []*VersionRecord
}

// storeSource 让 *Store 满足 VersionSource（方法签名一致，直接内嵌）.
var _ VersionSource = storeSource{}

type storeSource struct{ s *Store }

func (ss storeSource) NearestCheckpoint(fileID, atOrBefore string) (*VersionRecord, error) {
	return ss.s.NearestCheckpoint(fileID, atOrBefore)
}

func (ss storeSource) VersionsInRange(fileID, after, through string) []*VersionRecord {
	return ss.s.VersionsInRange(fileID, after, through)
}

// Reconstruct 重建文件在 targetID 时刻的内容：取最近检查点作为种子，
// 按序回放其后到 targetID 为止的增量.
//
// 个别补丁应用失败只记录警告并保留尽力而为的结果——模糊上下文匹配下
// 这是预期行为，不是异常. 区间中途出现的检查点（只可能来自并发的守护
// 任务）整体替换当前内容.
//
// 找不到检查点返回 ErrHistoryCorrupt：首检查点不变量被破坏.
func Reconstruct(ctx context.Context, src VersionSource, fileID, targetID string, logger zerolog.Logger) (string, error) {
	ckpt, err := src.NearestCheckpoint(fileID, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: file %s at %s", ErrHistoryCorrupt, fileID, targetID)
		}

		return "", fmt.Errorf("nearest checkpoint for %s: %w", fileID, err)
	}

	content, _ := ckpt.Payload.CheckpointText()

	if ckpt.ID >= targetID {
		return content, nil
	}

	for _, v := range src.VersionsInRange(fileID, ckpt.ID, targetID) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if text, ok := v.Payload.CheckpointText(); ok {
			content = text
			continue
		}

		set, err := v.Payload.PatchSet()
		if err != nil {
			return "", fmt.Errorf("parse patch for version %s: %w", v.ID, err)
		}

		next, applied := patch.Apply(set, content)

		for i, ok := range applied {
			if !ok {
				logger.Warn().
					Str("file_id", fileID).
					Str("version_id", v.ID).
					Int("patch", i).
					Msg("patch failed to apply cleanly, keeping best-effort content")
			}
		}

		content = next
	}

	return content, nil
}

package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/yeisme/histvault/pkg/internal/patch"
)

// Engine 把存储、重建和保存决策组合成版本历史引擎.
// 保存路径与守护任务的按文件合并共用一把以路径为键的互斥锁：
// 同一文件上的两次 save、或守护任务与 save，绝不交错各自的
// 读-重建-写序列，否则会在"最新版本"上竞争产生分叉的增量链.
type Engine struct {
	store  *Store
	logger zerolog.Logger

	lockMu    sync.Mutex
	fileLocks map[string]*sync.Mutex // 以文件路径为键
}

// NewEngine 创建引擎.
func NewEngine(store *Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		logger:    logger.With().Str("component", "history.engine").Logger(),
		fileLocks: make(map[string]*sync.Mutex),
	}
}

// Store 返回底层存储.
func (e *Engine) Store() *Store {
	return e.store
}

// lockPath 返回路径对应的互斥锁，按需创建.
func (e *Engine) lockPath(path string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	mu, ok := e.fileLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		e.fileLocks[path] = mu
	}

	return mu
}

// Save 记录路径的一次内容变更：
//   - 未跟踪的路径建档；软删除的记录复活（内容重新出现即取消删除簿记）
//   - 首个版本永远是检查点
//   - 与最新重建内容逐字节相同时不写任何东西（幂等 no-op）
//   - 否则写入从旧内容到新内容的增量
//
// 返回新插入的版本；no-op 时返回 nil. 调用方负责触发 Flush.
func (e *Engine) Save(ctx context.Context, path, content string) (*VersionRecord, error) {
	mu := e.lockPath(path)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()

	file, err := e.store.GetFileByPath(path)

	switch {
	case errors.Is(err, ErrNotFound):
		if file, err = e.store.InsertFile(path); err != nil {
			return nil, fmt.Errorf("insert file %s: %w", path, err)
		}
	case err != nil:
		return nil, err
	case file.Deleted():
		if err := e.store.UpdateFile(file.ID, FileUpdate{ClearDeleted: true}); err != nil {
			return nil, err
		}
	}

	latest, err := e.store.LatestVersion(file.ID)
	if errors.Is(err, ErrNotFound) {
		// 终极基线：文件的第一个版本永远是检查点
		v := &VersionRecord{
			ID:        NewID(now),
			FileID:    file.ID,
			Payload:   CheckpointPayload(content),
			Hash:      xxhash.Sum64String(content),
			CreatedAt: now,
		}

		if err := e.store.InsertVersion(v); err != nil {
			return nil, err
		}

		if err := e.touch(file.ID, now); err != nil {
			return nil, err
		}

		return v, nil
	} else if err != nil {
		return nil, err
	}

	prev, err := e.reconstructLatest(ctx, file.ID, latest.ID)
	if err != nil {
		return nil, err
	}

	if prev == content {
		// 幂等 no-op：重复保存不增长日志，也不动 updated_at
		return nil, nil
	}

	return e.insertDiff(file.ID, prev, content, xxhash.Sum64String(content), now)
}

// insertDiff 写入一个增量版本并更新文件的 updated_at.
func (e *Engine) insertDiff(fileID, prev, content string, hash uint64, now time.Time) (*VersionRecord, error) {
	v := &VersionRecord{
		ID:        NewID(now),
		FileID:    fileID,
		Payload:   DiffPayload(patch.Diff(prev, content)),
		Hash:      hash,
		CreatedAt: now,
	}

	if err := e.store.InsertVersion(v); err != nil {
		return nil, err
	}

	if err := e.touch(fileID, now); err != nil {
		return nil, err
	}

	return v, nil
}

func (e *Engine) touch(fileID string, now time.Time) error {
	return e.store.UpdateFile(fileID, FileUpdate{UpdatedAt: &now})
}

func (e *Engine) reconstructLatest(ctx context.Context, fileID, latestID string) (string, error) {
	return Reconstruct(ctx, storeSource{s: e.store}, fileID, latestID, e.logger)
}

// HasChanged 报告内容相对最新记录是否有变化. 未跟踪的路径视为有变化.
// 供调用方在触发 Save 前做廉价判断.
func (e *Engine) HasChanged(ctx context.Context, path, content string) (bool, error) {
	file, err := e.store.GetFileByPath(path)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	} else if err != nil {
		return false, err
	}

	latest, err := e.store.LatestVersion(file.ID)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	} else if err != nil {
		return false, err
	}

	if xxhash.Sum64String(content) != latest.Hash {
		return true, nil
	}

	prev, err := Reconstruct(ctx, storeSource{s: e.store}, file.ID, latest.ID, e.logger)
	if err != nil {
		return false, err
	}

	return prev != content, nil
}

// ReconstructAt 重建文件在目标版本 ID 时刻的内容.
func (e *Engine) ReconstructAt(ctx context.Context, fileID, targetID string) (string, error) {
	return Reconstruct(ctx, storeSource{s: e.store}, fileID, targetID, e.logger)
}

// MarkDeleted 记录外部协作方上报的文件删除. 只设置 deleted_at 簿记，
// 软删除的文件永久保留全部版本.
func (e *Engine) MarkDeleted(path string) error {
	mu := e.lockPath(path)
	mu.Lock()
	defer mu.Unlock()

	file, err := e.store.GetFileByPath(path)
	if err != nil {
		return err
	}

	if file.Deleted() {
		return nil
	}

	now := time.Now().UTC()

	return e.store.UpdateFile(file.ID, FileUpdate{DeletedAt: &now, UpdatedAt: &now})
}

package history

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Restore 重建路径在目标版本时刻的内容并写回文件系统：路径存在则覆盖，
// 不存在则创建；同时清除 deleted_at. 不插入任何版本——写回会经外部
// 编辑通知重新进入正常保存路径，恢复变成一次普通的增量/检查点，
// 绝不改写历史.
func (e *Engine) Restore(ctx context.Context, fs afero.Fs, path, targetID string) error {
	mu := e.lockPath(path)
	mu.Lock()
	defer mu.Unlock()

	file, err := e.store.GetFileByPath(path)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	content, err := Reconstruct(ctx, storeSource{s: e.store}, file.ID, targetID, e.logger)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
	}

	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	if file.Deleted() {
		if err := e.store.UpdateFile(file.ID, FileUpdate{ClearDeleted: true}); err != nil {
			return err
		}
	}

	e.logger.Info().Str("path", path).Str("version_id", targetID).Msg("restored file content")

	return nil
}

// Package watcher 监视保险库目录，把文件系统事件转成版本历史的
// 保存/删除调用.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/yeisme/histvault/pkg/internal/history"
)

// Watcher 递归监视一个根目录.历史记录以相对根目录的斜杠路径为键，
// 与存储文件的布局解耦.
type Watcher struct {
	engine *history.Engine
	fs     afero.Fs
	root   string
	fsw    *fsnotify.Watcher
	logger zerolog.Logger
}

// New 创建监视器并登记根目录下的全部子目录.
func New(engine *history.Engine, aferoFs afero.Fs, root string, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		engine: engine,
		fs:     aferoFs,
		root:   root,
		fsw:    fsw,
		logger: logger.With().Str("component", "watcher").Logger(),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()

		return nil, err
	}

	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if skipDir(d.Name()) && path != dir {
			return filepath.SkipDir
		}

		return w.fsw.Add(path)
	})
}

// skipDir 隐藏目录与常见的编辑器/版本控制目录不进历史.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Close 停止底层监视.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run 消费文件系统事件直到 ctx 取消.出错不中断循环，记日志继续.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	rel = filepath.ToSlash(rel)
	if isHiddenPath(rel) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if skipDir(filepath.Base(event.Name)) {
				return
			}

			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", rel).Msg("watch new directory failed")
			}

			return
		}

		w.save(ctx, rel, event.Name)

	case event.Op.Has(fsnotify.Write):
		w.save(ctx, rel, event.Name)

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// Rename 旧路径视同删除；新路径会带着 Create 事件再进来
		if err := w.engine.MarkDeleted(rel); err != nil {
			w.logger.Debug().Err(err).Str("path", rel).Msg("mark deleted skipped")
			return
		}

		w.flush()
	}
}

// flush 每次入库后立即落盘；存储未脏时是 no-op.
// 崩溃丢失窗口只剩单个事件，而不是整个快照间隔.
func (w *Watcher) flush() {
	if err := w.engine.Store().Flush(); err != nil {
		w.logger.Error().Err(err).Msg("flush after ingest failed")
	}
}

// isHiddenPath 任一路径段以点开头即视为隐藏.
func isHiddenPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}

	return false
}

func (w *Watcher) save(ctx context.Context, rel, abs string) {
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return
	}

	data, err := afero.ReadFile(w.fs, abs)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", rel).Msg("read changed file failed")
		return
	}

	// 只跟踪文本内容；二进制文件的增量没有意义
	if !utf8.Valid(data) {
		return
	}

	if _, err := w.engine.Save(ctx, rel, string(data)); err != nil {
		w.logger.Warn().Err(err).Str("path", rel).Msg("save version failed")
		return
	}

	w.flush()
}

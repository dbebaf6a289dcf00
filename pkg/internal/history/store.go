package history

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Store 是本地版本存储：files 与 versions 两张表，单进程独占.
// 表访问由内部互斥锁保护；跨越读-重建-写序列的按文件串行化由 Engine 负责.
// 所有读都能看到最近一次写；落盘是显式的 Flush，整个存储作为一个单元
// 重写（写临时文件后改名）. Flush 之前崩溃丢失未落盘状态，但不会破坏
// 已落盘状态.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string

	files    map[string]*FileRecord      // file id -> record
	byPath   map[string]string           // 当前持有该路径的 file id（含软删除行）
	versions map[string][]*VersionRecord // file id -> 按版本 ID 升序

	dirty  bool
	logger zerolog.Logger
}

// storeFile 是落盘格式.
type storeFile struct {
	Files    []*FileRecord    `json:"files"`
	Versions []*VersionRecord `json:"versions"`
}

// StoreStats 存储统计.
type StoreStats struct {
	Files       int `json:"files"`
	ActiveFiles int `json:"active_files"`
	Versions    int `json:"versions"`
	Checkpoints int `json:"checkpoints"`
}

// NewStore 创建一个空存储并尝试从 path 加载已有数据.
func NewStore(fs afero.Fs, path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		fs:       fs,
		path:     path,
		files:    make(map[string]*FileRecord),
		byPath:   make(map[string]string),
		versions: make(map[string][]*VersionRecord),
		logger:   logger.With().Str("component", "history.store").Logger(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// load 从落盘文件恢复状态；文件不存在视为空存储.
func (s *Store) load() error {
	ok, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("stat store file: %w", err)
	}

	if !ok {
		return nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}

	var raw storeFile
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode store file: %w", err)
	}

	for _, f := range raw.Files {
		s.files[f.ID] = f
		s.byPath[f.Path] = f.ID
	}

	for _, v := range raw.Versions {
		s.versions[v.FileID] = append(s.versions[v.FileID], v)
	}

	// 落盘顺序不可信，按版本 ID（时间有序）重排
	for _, vs := range s.versions {
		sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	}

	s.logger.Info().Int("files", len(s.files)).Msg("history store loaded")

	return nil
}

// Flush 将整个存储序列化并原子地重写落盘文件. 无脏数据时为 no-op.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	raw := storeFile{
		Files:    make([]*FileRecord, 0, len(s.files)),
		Versions: make([]*VersionRecord, 0),
	}

	for _, f := range s.files {
		raw.Files = append(raw.Files, f)
	}

	sort.Slice(raw.Files, func(i, j int) bool { return raw.Files[i].ID < raw.Files[j].ID })

	for _, vs := range s.versions {
		raw.Versions = append(raw.Versions, vs...)
	}

	sort.Slice(raw.Versions, func(i, j int) bool { return raw.Versions[i].ID < raw.Versions[j].ID })

	data, err := sonic.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store tmp: %w", err)
	}

	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	s.dirty = false

	return nil
}

// GetFileByPath 返回当前持有该路径的文件记录（含软删除行）.
func (s *Store) GetFileByPath(path string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPath[path]
	if !ok {
		return nil, ErrNotFound
	}

	return s.copyFile(s.files[id]), nil
}

// GetFileByID 按 ID 返回文件记录.
func (s *Store) GetFileByID(id string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}

	return s.copyFile(f), nil
}

// AllFiles 返回所有文件记录，包括软删除的.
func (s *Store) AllFiles() []*FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*FileRecord, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, s.copyFile(f))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// InsertFile 为路径创建新文件记录. 路径被活跃文件占用时返回 ErrPathConflict；
// 被软删除行占用时，旧行的路径加墓碑后缀释放，新文件接管该路径.
func (s *Store) InsertFile(path string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPath[path]; ok {
		old := s.files[id]
		if !old.Deleted() {
			return nil, ErrPathConflict
		}

		// 软删除行保留全部历史，仅释放路径
		old.Path = path + ".deleted-" + old.ID
		s.byPath[old.Path] = old.ID
	}

	now := time.Now().UTC()
	f := &FileRecord{
		ID:        NewID(now),
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.files[f.ID] = f
	s.byPath[path] = f.ID
	s.dirty = true

	return s.copyFile(f), nil
}

// FileUpdate 描述 UpdateFile 的部分更新.
type FileUpdate struct {
	Path         *string
	DeletedAt    *time.Time
	ClearDeleted bool
	UpdatedAt    *time.Time
}

// UpdateFile 对文件记录做部分更新.
func (s *Store) UpdateFile(id string, upd FileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}

	if upd.Path != nil && *upd.Path != f.Path {
		if holder, exists := s.byPath[*upd.Path]; exists && holder != id {
			return ErrPathConflict
		}

		delete(s.byPath, f.Path)
		f.Path = *upd.Path
		s.byPath[f.Path] = id
	}

	if upd.ClearDeleted {
		f.DeletedAt = nil
	} else if upd.DeletedAt != nil {
		t := *upd.DeletedAt
		f.DeletedAt = &t
	}

	if upd.UpdatedAt != nil {
		f.UpdatedAt = *upd.UpdatedAt
	}

	s.dirty = true

	return nil
}

// LatestVersion 返回文件的最新版本（最大版本 ID）.
func (s *Store) LatestVersion(fileID string) (*VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.versions[fileID]
	if len(vs) == 0 {
		return nil, ErrNotFound
	}

	return s.copyVersion(vs[len(vs)-1]), nil
}

// NearestCheckpoint 返回 ID ≤ atOrBefore 的最近检查点.
func (s *Store) NearestCheckpoint(fileID, atOrBefore string) (*VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.versions[fileID]
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].ID > atOrBefore {
			continue
		}

		if vs[i].Payload.IsCheckpoint() {
			return s.copyVersion(vs[i]), nil
		}
	}

	return nil, ErrNotFound
}

// VersionsInRange 返回版本 ID 落在 (after, through] 内的版本，升序.
func (s *Store) VersionsInRange(fileID, after, through string) []*VersionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*VersionRecord

	for _, v := range s.versions[fileID] {
		if v.ID <= after {
			continue
		}

		if v.ID > through {
			break
		}

		out = append(out, s.copyVersion(v))
	}

	return out
}

// InsertVersion 追加一个版本. 版本 ID 必须大于该文件现有的全部版本 ID.
func (s *Store) InsertVersion(v *VersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[v.FileID]; !ok {
		return ErrNotFound
	}

	vs := s.versions[v.FileID]
	if len(vs) > 0 && v.ID <= vs[len(vs)-1].ID {
		return fmt.Errorf("version id %s not after latest %s", v.ID, vs[len(vs)-1].ID)
	}

	cp := *v
	s.versions[v.FileID] = append(vs, &cp)
	s.dirty = true

	return nil
}

// PruneCheckpoints 删除文件的全部检查点行，但保留首个版本与 keepID.
// 增量行永不删除. 返回删除数量.
func (s *Store) PruneCheckpoints(fileID, keepID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, ok := s.versions[fileID]
	if !ok || len(vs) == 0 {
		return 0, ErrNotFound
	}

	firstID := vs[0].ID
	kept := vs[:0]
	pruned := 0

	for _, v := range vs {
		if v.Payload.IsCheckpoint() && v.ID != firstID && v.ID != keepID {
			pruned++
			continue
		}

		kept = append(kept, v)
	}

	s.versions[fileID] = kept
	if pruned > 0 {
		s.dirty = true
	}

	return pruned, nil
}

// UnsyncedVersions 返回未同步版本，按版本 ID 升序，最多 limit 条（limit<=0 不限）.
func (s *Store) UnsyncedVersions(limit int) []*VersionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*VersionRecord

	for _, vs := range s.versions {
		for _, v := range vs {
			if !v.Synced {
				out = append(out, s.copyVersion(v))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// MarkSynced 将给定版本标记为已同步.
func (s *Store) MarkSynced(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	for _, vs := range s.versions {
		for _, v := range vs {
			if _, ok := want[v.ID]; ok && !v.Synced {
				v.Synced = true
				s.dirty = true
			}
		}
	}
}

// VersionSummaries 返回文件全部版本的摘要，升序. 供历史浏览方使用.
func (s *Store) VersionSummaries(fileID string) ([]VersionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return nil, ErrNotFound
	}

	vs := s.versions[fileID]
	out := make([]VersionSummary, 0, len(vs))

	for _, v := range vs {
		out = append(out, VersionSummary{
			ID:           v.ID,
			IsCheckpoint: v.Payload.IsCheckpoint(),
			Size:         len(v.Payload.Data()),
			CreatedAt:    v.CreatedAt,
		})
	}

	return out, nil
}

// Stats 返回存储统计.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StoreStats{Files: len(s.files)}

	for _, f := range s.files {
		if !f.Deleted() {
			st.ActiveFiles++
		}
	}

	for _, vs := range s.versions {
		st.Versions += len(vs)

		for _, v := range vs {
			if v.Payload.IsCheckpoint() {
				st.Checkpoints++
			}
		}
	}

	return st
}

func (s *Store) copyFile(f *FileRecord) *FileRecord {
	cp := *f
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		cp.DeletedAt = &t
	}

	return &cp
}

func (s *Store) copyVersion(v *VersionRecord) *VersionRecord {
	cp := *v
	return &cp
}

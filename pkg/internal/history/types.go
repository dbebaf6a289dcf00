// Package history 实现按文件的版本历史引擎：检查点+增量的混合存储模型、
// 任意时间点的内容重建、保存路径的检查点/增量决策，以及把增量尾部合并为
// 新检查点的快照守护任务.
//
// 版本的真实排序键是 ULID（时间有序、单调递增），created_at 仅作展示属性.
package history

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"

	"github.com/yeisme/histvault/pkg/internal/patch"
)

var (
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
	ulidMu      sync.Mutex
)

// NewID 生成时间有序的 ULID 字符串. 单例熵源保证同一毫秒内单调递增，
// 因此同一文件的版本 ID 严格递增.
func NewID(t time.Time) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t.UTC()), ulidEntropy).String()
}

// FileRecord 表示一个被跟踪的文件.
type FileRecord struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"` // 软删除标记，仅为簿记，不触发数据删除
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Deleted 报告文件是否处于软删除状态.
func (f *FileRecord) Deleted() bool {
	return f.DeletedAt != nil
}

// VersionRecord 表示文件的一个版本. 每个文件的版本日志只追加，
// 唯一允许的删除是快照守护任务对被取代检查点的修剪.
type VersionRecord struct {
	ID        string
	FileID    string
	Payload   VersionPayload
	Hash      uint64 // 该版本生效后完整内容的 xxhash
	Synced    bool   // 客户端同步簿记
	CreatedAt time.Time
}

// versionJSON 是 VersionRecord 的持久化形态.
type versionJSON struct {
	ID           string    `json:"id"`
	FileID       string    `json:"file_id"`
	IsCheckpoint bool      `json:"is_checkpoint"`
	Data         string    `json:"data"`
	Hash         uint64    `json:"hash,omitempty"`
	Synced       bool      `json:"synced,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarshalJSON 以扁平结构序列化版本记录.
func (v *VersionRecord) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(versionJSON{
		ID:           v.ID,
		FileID:       v.FileID,
		IsCheckpoint: v.Payload.IsCheckpoint(),
		Data:         v.Payload.Data(),
		Hash:         v.Hash,
		Synced:       v.Synced,
		CreatedAt:    v.CreatedAt,
	})
}

// UnmarshalJSON 从扁平结构反序列化版本记录.
func (v *VersionRecord) UnmarshalJSON(data []byte) error {
	var raw versionJSON
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.ID = raw.ID
	v.FileID = raw.FileID
	v.Payload = RawPayload(raw.IsCheckpoint, raw.Data)
	v.Hash = raw.Hash
	v.Synced = raw.Synced
	v.CreatedAt = raw.CreatedAt

	return nil
}

// payloadKind 区分检查点与增量.
type payloadKind uint8

const (
	kindCheckpoint payloadKind = iota
	kindDiff
)

// VersionPayload 是版本数据的带标签变体：检查点携带完整文本，
// 增量携带序列化补丁集. 非法状态（标志位与数据不符）不可表示.
type VersionPayload struct {
	kind payloadKind
	data string
}

// CheckpointPayload 构造检查点载荷.
func CheckpointPayload(text string) VersionPayload {
	return VersionPayload{kind: kindCheckpoint, data: text}
}

// DiffPayload 构造增量载荷.
func DiffPayload(set patch.Set) VersionPayload {
	return VersionPayload{kind: kindDiff, data: set.Text()}
}

// RawPayload 从持久化/同步线格式构造载荷. 服务端原样存储客户端断言的
// 标志位与字节载荷.
func RawPayload(isCheckpoint bool, data string) VersionPayload {
	if isCheckpoint {
		return CheckpointPayload(data)
	}

	return VersionPayload{kind: kindDiff, data: data}
}

// IsCheckpoint 报告载荷是否为检查点.
func (p VersionPayload) IsCheckpoint() bool {
	return p.kind == kindCheckpoint
}

// Data 返回原始数据：检查点为完整文本，增量为序列化补丁集.
func (p VersionPayload) Data() string {
	return p.data
}

// CheckpointText 返回检查点文本；非检查点时第二个返回值为 false.
func (p VersionPayload) CheckpointText() (string, bool) {
	if p.kind != kindCheckpoint {
		return "", false
	}

	return p.data, true
}

// PatchSet 解析增量载荷的补丁集；检查点载荷返回错误.
func (p VersionPayload) PatchSet() (patch.Set, error) {
	if p.kind != kindDiff {
		return patch.Set{}, ErrNotDiff
	}

	return patch.FromText(p.data)
}

// VersionSummary 供历史浏览方使用的版本摘要.
type VersionSummary struct {
	ID           string    `json:"id"`
	IsCheckpoint bool      `json:"is_checkpoint"`
	Size         int       `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

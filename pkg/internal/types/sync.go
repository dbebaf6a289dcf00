package types

import "time"

// SyncVersionItem 上传的单个版本.客户端生成的 ULID 作为幂等键.
type SyncVersionItem struct {
	ID           string    `json:"id" rule:"required,len=26"`
	FileID       string    `json:"file_id" rule:"required,len=26"`
	FilePath     string    `json:"file_path" rule:"required,max=1024"`
	IsCheckpoint bool      `json:"is_checkpoint"`
	Data         string    `json:"data"`
	CreatedAt    time.Time `json:"created_at"`
}

// SyncVersionsRequest 批量上传版本请求.
type SyncVersionsRequest struct {
	VaultID  string            `json:"vault_id" rule:"required"`
	Versions []SyncVersionItem `json:"versions" rule:"required,min=1,dive"`
}

// SyncVersionError 单个版本的失败原因.
type SyncVersionError struct {
	VersionID string `json:"version_id"`
	Error     string `json:"error"`
}

// SyncVersionsResponse 批量上传版本响应.已存在的版本同样计入 synced.
type SyncVersionsResponse struct {
	Synced []string           `json:"synced"`
	Errors []SyncVersionError `json:"errors,omitempty"`
}

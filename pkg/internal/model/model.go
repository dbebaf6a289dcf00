// Package model 定义同步服务端的数据库模型.
// vault 拥有文件；device 只为版本署名，从不拥有它们.
package model

import "time"

// User 账户. 设备授权确认时按名称建档.
type User struct {
	ID        string `gorm:"primaryKey;size:26"              json:"id"`
	Name      string `gorm:"size:255;uniqueIndex"            json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Device 一台完成设备授权的客户端设备.
type Device struct {
	ID        string `gorm:"primaryKey;size:26" json:"id"`
	UserID    string `gorm:"size:26;index"      json:"user_id"`
	Name      string `gorm:"size:255"           json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault 属于且仅属于一个用户；(user_id, name) 唯一.
type Vault struct {
	ID        string `gorm:"primaryKey;size:26"                       json:"id"`
	UserID    string `gorm:"size:26;index:idx_user_vault,unique"      json:"user_id"`
	Name      string `gorm:"size:255;index:idx_user_vault,unique"     json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File vault 内被跟踪的文件. 路径唯一性只在活跃行之间成立，
// 由服务层按 (vault_id, path) 解析时保证.
type File struct {
	ID        string     `gorm:"primaryKey;size:26"                 json:"id"`
	VaultID   string     `gorm:"size:26;index:idx_vault_path"       json:"vault_id"`
	Path      string     `gorm:"size:1024;index:idx_vault_path"     json:"path"`
	DeletedAt *time.Time `gorm:"index"                              json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Version 文件版本日志的一行；只追加，记录上传它的设备.
// ID 是客户端生成的 ULID，同一文件内即排序键.
type Version struct {
	ID           string    `gorm:"primaryKey;size:26"           json:"id"`
	FileID       string    `gorm:"size:26;index:idx_file_ver"   json:"file_id"`
	DeviceID     string    `gorm:"size:26;index"                json:"device_id"`
	IsCheckpoint bool      `json:"is_checkpoint"`
	Data         string    `gorm:"type:text"                    json:"data"`
	CreatedAt    time.Time `gorm:"index:idx_file_ver"           json:"created_at"`
}

// AllModels 返回用于自动迁移的模型列表.
func AllModels() []any {
	return []any{&User{}, &Device{}, &Vault{}, &File{}, &Version{}}
}

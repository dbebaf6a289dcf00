package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultHistoryStorePath        = "histvault-data.json" // 本地历史存储文件
	DefaultSnapshotIntervalMinutes = 10                    // 快照合并周期（分钟）
	DefaultVaultName               = "default"             // 本地 vault 名称
)

// HistoryConfig 本地历史引擎配置.
type HistoryConfig struct {
	// StorePath 本地历史存储文件路径；整个存储在 flush 时整体重写.
	StorePath string `mapstructure:"store_path"`
	// VaultDir agent 监听的文档目录.
	VaultDir string `mapstructure:"vault_dir"`
	// VaultName 上传到服务端的 vault 名称.
	VaultName string `mapstructure:"vault_name"`
	// SnapshotIntervalMinutes 快照守护进程的合并周期.
	SnapshotIntervalMinutes int `mapstructure:"snapshot_interval_minutes" rule:"min=1"`
}

// SnapshotIntervalDuration 返回快照合并周期.
func (c *HistoryConfig) SnapshotIntervalDuration() time.Duration {
	return time.Duration(c.SnapshotIntervalMinutes) * time.Minute
}

func (c *HistoryConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("history.store_path", DefaultHistoryStorePath)
	v.SetDefault("history.vault_dir", ".")
	v.SetDefault("history.vault_name", DefaultVaultName)
	v.SetDefault("history.snapshot_interval_minutes", DefaultSnapshotIntervalMinutes)
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSyncIntervalMinutes = 5                        // 同步周期（分钟）
	DefaultSyncBatchSize       = 200                      // 单次上传的最大版本数
	DefaultCredentialsPath     = "histvault-creds.json"   // 令牌缓存文件
)

// SyncConfig 同步客户端配置.
type SyncConfig struct {
	Enabled         bool   `mapstructure:"enabled"`          // 是否启用云同步
	ServerURL       string `mapstructure:"server_url"`       // 同步服务端地址
	IntervalMinutes int    `mapstructure:"interval_minutes"` // 同步周期
	BatchSize       int    `mapstructure:"batch_size"`       // 单次上传的最大版本数
	CredentialsPath string `mapstructure:"credentials_path"` // 访问/刷新令牌缓存文件
}

// IntervalDuration 返回同步周期.
func (c *SyncConfig) IntervalDuration() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *SyncConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.server_url", "http://localhost:8080")
	v.SetDefault("sync.interval_minutes", DefaultSyncIntervalMinutes)
	v.SetDefault("sync.batch_size", DefaultSyncBatchSize)
	v.SetDefault("sync.credentials_path", DefaultCredentialsPath)
}

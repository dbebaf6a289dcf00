package configs

import "github.com/spf13/viper"

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"` // 是否启用Metrics
	Path    string `mapstructure:"path"`    // 暴露指标的路径
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAccessTokenTTLMinutes = 60   // 访问令牌有效期（分钟）
	DefaultRefreshTokenTTLDays   = 30   // 刷新令牌有效期（天）
	DefaultDeviceCodeTTLSeconds  = 1800 // 设备授权码有效期（秒）
	DefaultDevicePollInterval    = 5    // 设备授权轮询间隔（秒）
)

// AuthConfig 设备授权与令牌签发配置.
type AuthConfig struct {
	Enabled               bool     `mapstructure:"enabled"`                  // 开启认证校验
	JWTSecret             string   `mapstructure:"jwt_secret"`               // HS256 签名密钥
	AccessTokenTTLMinutes int      `mapstructure:"access_token_ttl_minutes"` // 访问令牌有效期
	RefreshTokenTTLDays   int      `mapstructure:"refresh_token_ttl_days"`   // 刷新令牌有效期
	DeviceCodeTTLSeconds  int      `mapstructure:"device_code_ttl_seconds"`  // 设备授权码有效期
	DevicePollInterval    int      `mapstructure:"device_poll_interval"`     // 设备授权轮询间隔
	VerificationURI       string   `mapstructure:"verification_uri"`         // 用户确认页地址
	SkipPaths             []string `mapstructure:"skip_paths"`               // 跳过认证的路径前缀
}

// AccessTokenTTL 返回访问令牌有效期.
func (c *AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL 返回刷新令牌有效期.
func (c *AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

// DeviceCodeTTL 返回设备授权码有效期.
func (c *AuthConfig) DeviceCodeTTL() time.Duration {
	return time.Duration(c.DeviceCodeTTLSeconds) * time.Second
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl_minutes", DefaultAccessTokenTTLMinutes)
	v.SetDefault("auth.refresh_token_ttl_days", DefaultRefreshTokenTTLDays)
	v.SetDefault("auth.device_code_ttl_seconds", DefaultDeviceCodeTTLSeconds)
	v.SetDefault("auth.device_poll_interval", DefaultDevicePollInterval)
	v.SetDefault("auth.verification_uri", "")
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/api/v1/health",
		"/auth",
	})
}

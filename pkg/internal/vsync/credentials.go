// Package vsync 实现云同步客户端：设备授权、凭证缓存、
// 带熔断的上报通道，以及周期性的版本批量上传.
package vsync

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/afero"
)

// Credentials 本地缓存的令牌对与设备身份.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`
}

// LoadCredentials 从令牌缓存文件读取凭证.文件不存在视为未登录.
func LoadCredentials(fs afero.Fs, path string) (*Credentials, error) {
	ok, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat credentials: %w", err)
	}

	if !ok {
		return nil, ErrReauthRequired
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := sonic.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	if creds.AccessToken == "" || creds.DeviceID == "" {
		return nil, ErrReauthRequired
	}

	return &creds, nil
}

// SaveCredentials 把凭证写入令牌缓存文件.
func SaveCredentials(fs afero.Fs, path string, creds *Credentials) error {
	data, err := sonic.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	return nil
}

// ClearCredentials 删除令牌缓存文件.刷新失败后调用，强制重新登录.
func ClearCredentials(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil {
		return fmt.Errorf("remove credentials: %w", err)
	}

	return nil
}

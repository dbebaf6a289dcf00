package vsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/afero"

	"github.com/yeisme/histvault/pkg/internal/types"
)

// Login 执行完整的设备授权流程：发起授权、提示用户确认、
// 轮询令牌直到授权完成或 ctx 取消，最后把凭证写入缓存文件.
// prompt 收到 user_code 与确认页地址后负责展示给用户.
func Login(ctx context.Context, serverURL, credsPath, deviceName string, fs afero.Fs, prompt func(userCode, verificationURI string)) error {
	httpc := &http.Client{Timeout: requestTimeout}

	var auth types.DeviceAuthResponse
	if err := postJSON(ctx, httpc, serverURL+"/auth/device",
		types.DeviceAuthRequest{DeviceName: deviceName}, &auth); err != nil {
		return fmt.Errorf("begin device auth: %w", err)
	}

	prompt(auth.UserCode, auth.VerificationURI)

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	deadline := time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("device authorization expired, run login again")
		}

		var tok struct {
			types.TokenResponse
			Status string `json:"status"`
		}

		if err := postJSON(ctx, httpc, serverURL+"/auth/token", types.TokenRequest{DeviceCode: auth.DeviceCode}, &tok); err != nil {
			return fmt.Errorf("poll token: %w", err)
		}

		if tok.Status == "authorization_pending" {
			continue
		}

		return SaveCredentials(fs, credsPath, &Credentials{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			DeviceID:     tok.DeviceID,
		})
	}
}

func postJSON(ctx context.Context, httpc *http.Client, url string, body, out any) error {
	data, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
	}

	return sonic.Unmarshal(raw, out)
}

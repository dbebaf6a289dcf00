package vsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/spf13/afero"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/types"
)

var (
	// ErrReauthRequired 凭证缺失或刷新失败，需要重新走设备授权.
	ErrReauthRequired = errors.New("reauthentication required")
	// ErrServerUnavailable 熔断器打开，本轮放弃请求.
	ErrServerUnavailable = errors.New("sync server unavailable")
)

const requestTimeout = 30 * time.Second

// statusError 携带 HTTP 状态码的请求失败，调用方可据此区分
// 资源缺失与其他错误.
type statusError struct {
	status int
	method string
	path   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d for %s %s", e.status, e.method, e.path)
}

// errStatus 从错误链里取 HTTP 状态码，不是状态错误时返回 0.
func errStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}

	return 0
}

// Client 同步服务端的 HTTP 客户端.所有请求都经过熔断器：
// 服务端持续失败时快速放弃，等打开窗口过后再试.
type Client struct {
	baseURL   string
	http      *http.Client
	fs        afero.Fs
	credsPath string
	creds     *Credentials
	breaker   *gobreaker.CircuitBreaker
	logger    zerolog.Logger
}

// NewClient 创建同步客户端并加载缓存的凭证.
func NewClient(cfg *configs.SyncConfig, bcfg *configs.CircuitBreakerConfig, fs afero.Fs, logger zerolog.Logger) (*Client, error) {
	creds, err := LoadCredentials(fs, cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   cfg.ServerURL,
		http:      &http.Client{Timeout: requestTimeout},
		fs:        fs,
		credsPath: cfg.CredentialsPath,
		creds:     creds,
		breaker:   newBreaker(bcfg),
		logger:    logger.With().Str("component", "vsync.client").Logger(),
	}, nil
}

func newBreaker(cfg *configs.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "sync-server",
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.Requests
			if total < cfg.MinRequests {
				return false
			}
			// 失败比例
			failureRate := float64(counts.TotalFailures) / float64(total)

			return failureRate >= cfg.FailureRate
		},
	}

	if !cfg.Enabled {
		// 永不跳闸
		settings.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// DeviceID 返回凭证中的设备 ID.
func (c *Client) DeviceID() string {
	return c.creds.DeviceID
}

// do 发送一次带认证的 JSON 请求.401 时用刷新令牌换新后重试一次；
// 刷新也失败则清空凭证并返回 ErrReauthRequired.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		status, err := c.roundTrip(ctx, method, path, body, out)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized {
			if err := c.refresh(ctx); err != nil {
				return nil, err
			}

			status, err = c.roundTrip(ctx, method, path, body, out)
			if err != nil {
				return nil, err
			}
		}

		if status >= http.StatusBadRequest {
			return nil, &statusError{status: status, method: method, path: path}
		}

		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrServerUnavailable
	}

	return err
}

// roundTrip 单次请求.2xx 时把响应体解码进 out.
func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader

	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	req.Header.Set("X-Device-ID", c.creds.DeviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices && out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, fmt.Errorf("read response: %w", err)
		}

		if err := sonic.Unmarshal(data, out); err != nil {
			return 0, fmt.Errorf("decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// refresh 用刷新令牌换新令牌对并落盘.失败即判定需要重新授权.
func (c *Client) refresh(ctx context.Context) error {
	data, err := sonic.Marshal(types.RefreshRequest{RefreshToken: c.creds.RefreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("token refresh rejected, clearing credentials")

		if err := ClearCredentials(c.fs, c.credsPath); err != nil {
			c.logger.Warn().Err(err).Msg("clear credentials failed")
		}

		return ErrReauthRequired
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var tok types.TokenResponse
	if err := sonic.Unmarshal(raw, &tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	c.creds.AccessToken = tok.AccessToken

	// 服务端可以只回访问令牌；缺省时沿用原刷新令牌
	if tok.RefreshToken != "" {
		c.creds.RefreshToken = tok.RefreshToken
	}

	return SaveCredentials(c.fs, c.credsPath, c.creds)
}

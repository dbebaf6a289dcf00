package service

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/types"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()

	return &AuthService{
		Service: newTestService(t),
		cfg: &configs.AuthConfig{
			Enabled:               true,
			JWTSecret:             "unit-test-secret",
			AccessTokenTTLMinutes: 5,
			RefreshTokenTTLDays:   1,
			DeviceCodeTTLSeconds:  60,
			DevicePollInterval:    1,
		},
	}
}

func TestDeviceAuthFlow(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	begin, err := auth.BeginDeviceAuth(ctx, types.DeviceAuthRequest{DeviceName: "laptop"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if begin.DeviceCode == "" || begin.UserCode == "" {
		t.Fatalf("begin returned empty codes: %+v", begin)
	}

	// 确认前轮询一直 pending
	if _, err := auth.PollToken(ctx, types.TokenRequest{DeviceCode: begin.DeviceCode}); !errors.Is(err, ErrAuthorizationPending) {
		t.Fatalf("expected pending before confirm, got %v", err)
	}

	if err := auth.ConfirmDeviceAuth(ctx, types.DeviceConfirmRequest{UserCode: begin.UserCode, UserName: "alice"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	tok, err := auth.PollToken(ctx, types.TokenRequest{DeviceCode: begin.DeviceCode})
	if err != nil {
		t.Fatalf("poll after confirm: %v", err)
	}

	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.DeviceID == "" {
		t.Fatalf("incomplete token response: %+v", tok)
	}

	claims, err := ParseToken(tok.AccessToken, auth.cfg.JWTSecret)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.Type != "access" || claims.DeviceID != tok.DeviceID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// 授权码一次性消费
	if _, err := auth.PollToken(ctx, types.TokenRequest{DeviceCode: begin.DeviceCode}); !errors.Is(err, ErrDeviceCodeExpired) {
		t.Fatalf("device code should be consumed, got %v", err)
	}

	// 设备已在册
	var devices []model.Device
	auth.dbClient.GetDB().Find(&devices)

	if len(devices) != 1 || devices[0].Name != "laptop" {
		t.Fatalf("device not registered: %+v", devices)
	}
}

func TestDeviceAuthConfirmReusesUser(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	for range 2 {
		begin, err := auth.BeginDeviceAuth(ctx, types.DeviceAuthRequest{DeviceName: "phone"})
		if err != nil {
			t.Fatalf("begin: %v", err)
		}

		if err := auth.ConfirmDeviceAuth(ctx, types.DeviceConfirmRequest{UserCode: begin.UserCode, UserName: "bob"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		if _, err := auth.PollToken(ctx, types.TokenRequest{DeviceCode: begin.DeviceCode}); err != nil {
			t.Fatalf("poll: %v", err)
		}
	}

	var users []model.User
	auth.dbClient.GetDB().Find(&users)

	if len(users) != 1 {
		t.Fatalf("same user name must map to one account, got %d", len(users))
	}
}

func TestRefreshToken(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	begin, _ := auth.BeginDeviceAuth(ctx, types.DeviceAuthRequest{DeviceName: "tablet"})
	_ = auth.ConfirmDeviceAuth(ctx, types.DeviceConfirmRequest{UserCode: begin.UserCode, UserName: "carol"})

	tok, err := auth.PollToken(ctx, types.TokenRequest{DeviceCode: begin.DeviceCode})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}

	renewed, err := auth.RefreshToken(ctx, types.RefreshRequest{RefreshToken: tok.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if renewed.DeviceID != tok.DeviceID {
		t.Fatalf("refresh must keep device identity: %s vs %s", renewed.DeviceID, tok.DeviceID)
	}

	// 访问令牌不能当刷新令牌用
	if _, err := auth.RefreshToken(ctx, types.RefreshRequest{RefreshToken: tok.AccessToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not refresh, got %v", err)
	}

	// 设备被移除后刷新失效
	auth.dbClient.GetDB().Where("id = ?", tok.DeviceID).Delete(&model.Device{})

	if _, err := auth.RefreshToken(ctx, types.RefreshRequest{RefreshToken: renewed.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("removed device must not refresh, got %v", err)
	}
}

// TestDeviceCodeRandom 设备码是纯随机字节，相邻请求之间不可推测.
func TestDeviceCodeRandom(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	a, err := auth.BeginDeviceAuth(ctx, types.DeviceAuthRequest{DeviceName: "laptop"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	b, err := auth.BeginDeviceAuth(ctx, types.DeviceAuthRequest{DeviceName: "laptop"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if a.DeviceCode == b.DeviceCode {
		t.Fatal("device codes must be unique")
	}

	for _, code := range []string{a.DeviceCode, b.DeviceCode} {
		raw, err := hex.DecodeString(code)
		if err != nil || len(raw) != 32 {
			t.Fatalf("device code should be 32 random bytes hex-encoded, got %q", code)
		}
	}
}

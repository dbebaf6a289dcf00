package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/types"
)

// AuthService 实现设备授权流程与 JWT 签发.
type AuthService struct {
	*Service
	cfg *configs.AuthConfig
}

func NewAuthService(c context.Context) *AuthService {
	return &AuthService{Service: NewService(c), cfg: &configs.GetConfig().Auth}
}

// deviceGrant 一次进行中的设备授权.confirmed 前 userID 为空.
type deviceGrant struct {
	deviceCode string
	userCode   string
	deviceName string
	userID     string
	confirmed  bool
	expiresAt  time.Time
}

// 设备授权码是短生命周期的内存状态，不落库；服务重启后客户端重新发起即可.
var (
	grantMu       sync.Mutex
	grantsByCode  = map[string]*deviceGrant{} // device_code -> grant
	grantsByUser  = map[string]*deviceGrant{} // user_code -> grant
	userCodeChars = "BCDFGHJKLMNPQRSTVWXZ"    // 避免元音，减少拼出歧义词的概率
)

func newUserCode() (string, error) {
	var b strings.Builder
	for i := range 8 {
		if i == 4 {
			b.WriteByte('-')
		}

		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(userCodeChars))))
		if err != nil {
			return "", err
		}

		b.WriteByte(userCodeChars[n.Int64()])
	}

	return b.String(), nil
}

// newDeviceCode 设备码必须不可猜测，用纯随机字节而不是时间有序 ID.
func newDeviceCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func pruneExpiredGrants(now time.Time) {
	for code, g := range grantsByCode {
		if now.After(g.expiresAt) {
			delete(grantsByCode, code)
			delete(grantsByUser, g.userCode)
		}
	}
}

// BeginDeviceAuth 开始设备授权，返回 device_code 与供用户确认的 user_code.
func (s *AuthService) BeginDeviceAuth(ctx context.Context, req types.DeviceAuthRequest) (types.DeviceAuthResponse, error) {
	userCode, err := newUserCode()
	if err != nil {
		return types.DeviceAuthResponse{}, fmt.Errorf("generate user code: %w", err)
	}

	deviceCode, err := newDeviceCode()
	if err != nil {
		return types.DeviceAuthResponse{}, fmt.Errorf("generate device code: %w", err)
	}

	g := &deviceGrant{
		deviceCode: deviceCode,
		userCode:   userCode,
		deviceName: req.DeviceName,
		expiresAt:  time.Now().Add(s.cfg.DeviceCodeTTL()),
	}

	grantMu.Lock()
	pruneExpiredGrants(time.Now())
	grantsByCode[g.deviceCode] = g
	grantsByUser[g.userCode] = g
	grantMu.Unlock()

	return types.DeviceAuthResponse{
		DeviceCode:      g.deviceCode,
		UserCode:        g.userCode,
		VerificationURI: s.cfg.VerificationURI,
		ExpiresIn:       s.cfg.DeviceCodeTTLSeconds,
		Interval:        s.cfg.DevicePollInterval,
	}, nil
}

// ConfirmDeviceAuth 用户侧确认授权.按名称建档用户（不存在则创建），并登记设备.
func (s *AuthService) ConfirmDeviceAuth(ctx context.Context, req types.DeviceConfirmRequest) error {
	grantMu.Lock()
	g, ok := grantsByUser[strings.ToUpper(strings.TrimSpace(req.UserCode))]
	grantMu.Unlock()

	if !ok || time.Now().After(g.expiresAt) {
		return ErrDeviceCodeExpired
	}

	dbx := s.dbClient.GetDB().WithContext(ctx)

	var user model.User
	err := dbx.Where("name = ?", req.UserName).First(&user).Error
	if err != nil {
		user = model.User{ID: history.NewID(time.Now()), Name: req.UserName}
		if err := dbx.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
	}

	grantMu.Lock()
	g.userID = user.ID
	g.confirmed = true
	grantMu.Unlock()

	return nil
}

// PollToken 轮询设备授权结果.未确认返回 ErrAuthorizationPending.
// 确认后登记设备并签发访问/刷新令牌，授权码一次性消费.
func (s *AuthService) PollToken(ctx context.Context, req types.TokenRequest) (types.TokenResponse, error) {
	grantMu.Lock()
	g, ok := grantsByCode[req.DeviceCode]

	if !ok || time.Now().After(g.expiresAt) {
		grantMu.Unlock()

		return types.TokenResponse{}, ErrDeviceCodeExpired
	}

	if !g.confirmed {
		grantMu.Unlock()

		return types.TokenResponse{}, ErrAuthorizationPending
	}

	delete(grantsByCode, g.deviceCode)
	delete(grantsByUser, g.userCode)
	grantMu.Unlock()

	device := model.Device{ID: history.NewID(time.Now()), UserID: g.userID, Name: g.deviceName}
	if err := s.dbClient.GetDB().WithContext(ctx).Create(&device).Error; err != nil {
		return types.TokenResponse{}, fmt.Errorf("create device: %w", err)
	}

	return s.issueTokens(g.userID, device.ID)
}

// RefreshToken 用刷新令牌换新令牌对.
func (s *AuthService) RefreshToken(ctx context.Context, req types.RefreshRequest) (types.TokenResponse, error) {
	claims, err := s.parseToken(req.RefreshToken)
	if err != nil || claims.Type != "refresh" {
		return types.TokenResponse{}, ErrInvalidToken
	}

	// 设备可能已被移除，刷新前校验仍在册
	var device model.Device
	if err := s.dbClient.GetDB().WithContext(ctx).
		Where("id = ? AND user_id = ?", claims.DeviceID, claims.Subject).
		First(&device).Error; err != nil {
		return types.TokenResponse{}, ErrInvalidToken
	}

	return s.issueTokens(claims.Subject, claims.DeviceID)
}

// TokenClaims JWT 载荷.Subject 为用户 ID.
type TokenClaims struct {
	DeviceID string `json:"device_id"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *AuthService) issueTokens(userID, deviceID string) (types.TokenResponse, error) {
	now := time.Now()

	sign := func(typ string, ttl time.Duration) (string, error) {
		claims := TokenClaims{
			DeviceID: deviceID,
			Type:     typ,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
		}

		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	}

	access, err := sign("access", s.cfg.AccessTokenTTL())
	if err != nil {
		return types.TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := sign("refresh", s.cfg.RefreshTokenTTL())
	if err != nil {
		return types.TokenResponse{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return types.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL().Seconds()),
		DeviceID:     deviceID,
	}, nil
}

func (s *AuthService) parseToken(raw string) (*TokenClaims, error) {
	return ParseToken(raw, s.cfg.JWTSecret)
}

// ParseToken 校验签名并解析 JWT 载荷.中间件与服务共用.
func ParseToken(raw, secret string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

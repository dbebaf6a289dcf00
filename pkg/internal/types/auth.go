// Package types 定义同步服务端的请求/响应 DTO.
package types

// DeviceAuthRequest 设备授权请求.
type DeviceAuthRequest struct {
	DeviceName string `json:"device_name" rule:"required,max=128"`
}

// DeviceAuthResponse 设备授权响应，客户端凭 device_code 轮询令牌.
type DeviceAuthResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// DeviceConfirmRequest 用户在浏览器侧确认设备授权.
type DeviceConfirmRequest struct {
	UserCode string `json:"user_code" rule:"required"`
	UserName string `json:"user_name" rule:"required,max=64"`
}

// TokenRequest 轮询令牌请求.
type TokenRequest struct {
	DeviceCode string `json:"device_code" rule:"required"`
}

// TokenResponse 令牌响应.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	DeviceID     string `json:"device_id"`
}

// RefreshRequest 刷新令牌请求.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" rule:"required"`
}

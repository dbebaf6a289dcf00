package service

import "errors"

var (
	// ErrAuthorizationPending 设备授权等待用户确认.
	ErrAuthorizationPending = errors.New("authorization pending")
	// ErrDeviceCodeExpired 设备授权码过期或不存在.
	ErrDeviceCodeExpired = errors.New("device code expired")
	// ErrInvalidToken 令牌无效或过期.
	ErrInvalidToken = errors.New("invalid token")
	// ErrVaultForbidden 保险库不属于当前用户.
	ErrVaultForbidden = errors.New("vault does not belong to user")
	// ErrVaultNotFound 保险库不存在.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrFileNotFound 文件不存在.
	ErrFileNotFound = errors.New("file not found")
)

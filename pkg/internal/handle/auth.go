package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/internal/types"
	"github.com/yeisme/histvault/pkg/log"
	"github.com/yeisme/histvault/pkg/rule"
)

// DeviceAuthBegin 开始设备授权流程.
func DeviceAuthBegin(c *gin.Context) {
	var req types.DeviceAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := service.NewAuthService(c.Request.Context()).BeginDeviceAuth(c.Request.Context(), req)
	if err != nil {
		log.Logger().Error().Err(err).Msg("device auth begin failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeviceAuthConfirm 用户确认设备授权.
func DeviceAuthConfirm(c *gin.Context) {
	var req types.DeviceConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := service.NewAuthService(c.Request.Context()).ConfirmDeviceAuth(c.Request.Context(), req); err != nil {
		if errors.Is(err, service.ErrDeviceCodeExpired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expired_token"})
			return
		}

		log.Logger().Error().Err(err).Msg("device auth confirm failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// Token 轮询设备授权，授权完成时签发令牌.
func Token(c *gin.Context) {
	var req types.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := service.NewAuthService(c.Request.Context()).PollToken(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthorizationPending):
			// 未确认不是错误，客户端据此继续轮询
			c.JSON(http.StatusOK, gin.H{"status": "authorization_pending"})
		case errors.Is(err, service.ErrDeviceCodeExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "expired_token"})
		default:
			log.Logger().Error().Err(err).Msg("token poll failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refresh 刷新令牌.
func Refresh(c *gin.Context) {
	var req types.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := service.NewAuthService(c.Request.Context()).RefreshToken(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_grant"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

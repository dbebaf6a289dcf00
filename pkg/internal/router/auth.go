package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/handle"
)

// RegisterAuthRoutes 注册设备授权与令牌路由.
func RegisterAuthRoutes(engine *gin.Engine) {
	authRoutes := engine.Group("/auth")
	{
		authRoutes.POST("/device", handle.DeviceAuthBegin)
		authRoutes.POST("/device/confirm", handle.DeviceAuthConfirm)
		authRoutes.POST("/token", handle.Token)
		authRoutes.POST("/refresh", handle.Refresh)
	}
}

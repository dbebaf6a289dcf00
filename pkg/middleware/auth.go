// Package middleware 提供中间件
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/handle"
	"github.com/yeisme/histvault/pkg/internal/service"
)

// AuthMiddleware 校验 Bearer 访问令牌，并要求 X-Device-ID 与令牌内的
// device_id 一致.通过后把用户/设备身份注入 gin context 供处理器使用.
//   - 支持通过配置跳过某些路径（如 /metrics, /auth, /api/v1/health）
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled || isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		raw, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := service.ParseToken(raw, conf.JWTSecret)
		if err != nil || claims.Type != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		deviceID := strings.TrimSpace(c.GetHeader("X-Device-ID"))
		if deviceID == "" || deviceID != claims.DeviceID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "device mismatch"})
			return
		}

		c.Set(handle.UserIDKey, claims.Subject)
		c.Set(handle.DeviceIDKey, claims.DeviceID)

		c.Next()
	}
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

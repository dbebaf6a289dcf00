// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 中间件写入 gin context 的认证身份键.
const (
	UserIDKey   = "user_id"
	DeviceIDKey = "device_id"
)

// identity 取出认证中间件注入的用户与设备.未注入说明中间件配置有误.
func identity(c *gin.Context) (userID, deviceID string, ok bool) {
	userID = c.GetString(UserIDKey)
	deviceID = c.GetString(DeviceIDKey)

	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})

		return "", "", false
	}

	return userID, deviceID, true
}

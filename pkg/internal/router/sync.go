package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/handle"
)

// RegisterSyncRoutes 注册版本上报路由.
func RegisterSyncRoutes(engine *gin.Engine) {
	syncRoutes := engine.Group("/sync")
	{
		syncRoutes.POST("/versions", handle.SyncVersions)
	}
}

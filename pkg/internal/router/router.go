// Package router 管理路由配置，用于设置 HTTP 服务的路由规则.
package router

import (
	"github.com/gin-gonic/gin"
)

// Register 将全部业务路由绑定到 gin 引擎.路径布局：
//
//	POST /auth/device            开始设备授权
//	POST /auth/device/confirm    用户确认授权
//	POST /auth/token             轮询令牌
//	POST /auth/refresh           刷新令牌
//	GET  /vaults                 列出保险库
//	POST /vaults                 创建保险库
//	GET  /vaults/:id/files/:fileId/reconstruct  服务端重建
//	POST /sync/versions          批量上报版本
//	GET  /api/v1/health          健康检查
//	GET  /api/v1/stats           用户统计
func Register(engine *gin.Engine) {
	RegisterAuthRoutes(engine)
	RegisterVaultRoutes(engine)
	RegisterSyncRoutes(engine)

	v1 := engine.Group("/api/v1")
	RegisterHealthCheckRoute(v1)
	RegisterStatsRoutes(v1)
}

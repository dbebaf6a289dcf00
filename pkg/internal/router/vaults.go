package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/handle"
)

// RegisterVaultRoutes 注册保险库路由.
func RegisterVaultRoutes(engine *gin.Engine) {
	vaultRoutes := engine.Group("/vaults")
	{
		vaultRoutes.GET("", handle.ListVaults)
		vaultRoutes.POST("", handle.CreateVault)
		vaultRoutes.GET("/:id/files/:fileId/reconstruct", handle.ReconstructFile)
	}
}

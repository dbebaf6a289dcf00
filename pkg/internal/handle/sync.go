package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/internal/types"
	"github.com/yeisme/histvault/pkg/rule"
)

// vaultFromRequest 校验保险库归属并返回模型，失败时已写出响应.
func vaultFromRequest(c *gin.Context, userID, vaultID string) (vault *model.Vault, ok bool) {
	v, err := service.NewVaultService(c.Request.Context()).Authorize(c.Request.Context(), userID, vaultID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVaultNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "vault not found"})
		case errors.Is(err, service.ErrVaultForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return nil, false
	}

	return v, true
}

// SyncVersions 批量接收客户端上报的版本.整批属于同一保险库；
// 归属校验失败整批 403/404，单条失败只在响应 errors 里按条目报告.
func SyncVersions(c *gin.Context) {
	userID, deviceID, ok := identity(c)
	if !ok {
		return
	}

	var req types.SyncVersionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vault, ok := vaultFromRequest(c, userID, req.VaultID)
	if !ok {
		return
	}

	resp := service.NewSyncService(c.Request.Context()).IngestVersions(c.Request.Context(), vault, deviceID, req)

	c.JSON(http.StatusOK, resp)
}

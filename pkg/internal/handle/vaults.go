package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/internal/types"
	"github.com/yeisme/histvault/pkg/log"
	"github.com/yeisme/histvault/pkg/rule"
)

// ListVaults 列出当前用户的保险库.
func ListVaults(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	resp, err := service.NewVaultService(c.Request.Context()).List(c.Request.Context(), userID)
	if err != nil {
		log.Logger().Error().Err(err).Msg("list vaults failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateVault 创建保险库，按 (user, name) 幂等.
func CreateVault(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	var req types.CreateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := service.NewVaultService(c.Request.Context()).Create(c.Request.Context(), userID, req)
	if err != nil {
		log.Logger().Error().Err(err).Msg("create vault failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, info)
}

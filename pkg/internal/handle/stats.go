package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/log"
)

// GetStats 汇总当前用户的存储统计.
func GetStats(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	resp, err := service.NewStatsService(c.Request.Context()).Summary(c.Request.Context(), userID)
	if err != nil {
		log.Logger().Error().Err(err).Msg("stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, resp)
}

package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/log"
)

// ReconstructFile 重建保险库内某文件在给定版本（query 参数 at，
// 缺省为最新）时刻的内容.
func ReconstructFile(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}

	vault, ok := vaultFromRequest(c, userID, c.Param("id"))
	if !ok {
		return
	}

	content, err := service.NewReconstructService(c.Request.Context()).
		At(c.Request.Context(), vault, c.Param("fileId"), c.Query("at"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNotFound), errors.Is(err, history.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, history.ErrHistoryCorrupt):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			log.Logger().Error().Err(err).Msg("reconstruct failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	c.JSON(http.StatusOK, gin.H{"file_id": c.Param("fileId"), "content": content})
}

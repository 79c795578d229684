package file_activities

import (
	"strconv"

	"go_gitsync/internal/activity"
	"go_gitsync/internal/httpx"

	"github.com/gin-gonic/gin"
)

// Handler 文件处理流水查询API
type Handler struct {
	activities *activity.Service
}

// NewHandler 创建文件流水处理器
func NewHandler(activities *activity.Service) *Handler {
	return &Handler{activities: activities}
}

// List 查询账号的文件处理流水，可按文件路径过滤
// GET /api/v1/accounts/:accountId/file-activities
func (h *Handler) List(c *gin.Context) {
	accountID := c.Param("accountId")
	filePath := c.Query("filePath")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	list, total, err := h.activities.List(accountID, filePath, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

package git_commits

import (
	"strconv"

	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/httpx"

	"github.com/gin-gonic/gin"
)

// Handler 提交记录查询API
type Handler struct {
	commits *gitsync.CommitService
}

// NewHandler 创建提交记录处理器
func NewHandler(commits *gitsync.CommitService) *Handler {
	return &Handler{commits: commits}
}

// List 查询账号的提交记录
// GET /api/v1/accounts/:accountId/commits
func (h *Handler) List(c *gin.Context) {
	accountID := c.Param("accountId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	list, total, err := h.commits.List(accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

package change_sets

import (
	"strconv"

	"go_gitsync/internal/httpx"
	"go_gitsync/internal/model"
	"go_gitsync/internal/queue"

	"github.com/gin-gonic/gin"
)

// Handler 变更集查询API
type Handler struct {
	changeSets *queue.ChangeSetService
}

// NewHandler 创建变更集处理器
func NewHandler(changeSets *queue.ChangeSetService) *Handler {
	return &Handler{changeSets: changeSets}
}

// List 查询账号的变更集列表
// GET /api/v1/accounts/:accountId/change-sets
func (h *Handler) List(c *gin.Context) {
	accountID := c.Param("accountId")
	status := model.ChangeSetStatus(c.Query("status"))
	page, pageSize := pagination(c)

	list, total, err := h.changeSets.List(accountID, status, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

// Get 查询单个变更集
// GET /api/v1/accounts/:accountId/change-sets/:id
func (h *Handler) Get(c *gin.Context) {
	accountID := c.Param("accountId")
	id := c.Param("id")

	cs, err := h.changeSets.Get(accountID, id)
	if err != nil {
		httpx.FailErr(c, httpx.ErrNotFound(err.Error()))
		return
	}

	httpx.OK(c, cs)
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}

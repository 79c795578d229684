package sync_errors

import (
	"strconv"

	"go_gitsync/internal/alert"
	"go_gitsync/internal/httpx"
	"go_gitsync/internal/syncerrors"

	"github.com/gin-gonic/gin"
)

// Handler 同步错误与告警API
type Handler struct {
	syncErrors *syncerrors.Service
	alerts     *alert.Service
}

// NewHandler 创建同步错误处理器
func NewHandler(syncErrors *syncerrors.Service, alerts *alert.Service) *Handler {
	return &Handler{syncErrors: syncErrors, alerts: alerts}
}

// List 查询账号的未解决同步错误
// GET /api/v1/accounts/:accountId/sync-errors
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

	list, total, err := h.syncErrors.List(accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

// DiscardRequest 放弃指定同步错误的请求体
type DiscardRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// Discard 放弃指定的同步错误
// POST /api/v1/accounts/:accountId/sync-errors/discard
func (h *Handler) Discard(c *gin.Context) {
	accountID := c.Param("accountId")

	var req DiscardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	if err := h.syncErrors.DiscardByIDs(accountID, req.IDs); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"discarded": len(req.IDs),
	})
}

// DiscardAll 放弃账号全部同步错误
// POST /api/v1/accounts/:accountId/sync-errors/discard-all
func (h *Handler) DiscardAll(c *gin.Context) {
	accountID := c.Param("accountId")

	if err := h.syncErrors.DiscardAll(accountID); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"accountId": accountID,
	})
}

// ListAlerts 查询账号当前打开的告警
// GET /api/v1/accounts/:accountId/alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	accountID := c.Param("accountId")

	alerts, err := h.alerts.ListOpen(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

package git_tasks

import (
	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/httpx"

	"github.com/gin-gonic/gin"
)

// Handler 远端git worker回调处理器
type Handler struct {
	waiter      *gitsync.Waiter
	workerToken string
}

// NewHandler 创建git任务回调处理器
func NewHandler(waiter *gitsync.Waiter, workerToken string) *Handler {
	return &Handler{waiter: waiter, workerToken: workerToken}
}

// Callback 接收worker上报的任务结果
// POST /api/v1/git-tasks/callback
//
// Redelivered results whose wait id was already consumed are acknowledged,
// not retried: the worker must not keep re-posting them.
func (h *Handler) Callback(c *gin.Context) {
	if h.workerToken != "" && c.GetHeader("X-Worker-Token") != h.workerToken {
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid worker token"))
		return
	}

	var result gitsync.GitCommandResult
	if err := c.ShouldBindJSON(&result); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}
	if result.WaitID == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("waitId is required"))
		return
	}

	delivered := h.waiter.Notify(&result)
	httpx.OK(c, gin.H{
		"waitId":    result.WaitID,
		"delivered": delivered,
	})
}

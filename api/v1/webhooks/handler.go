package webhooks

import (
	"io"

	"go_gitsync/internal/httpx"
	"go_gitsync/internal/webhook"

	"github.com/gin-gonic/gin"
)

// Handler webhook接收与token管理
type Handler struct {
	ingestor     *webhook.Ingestor
	tokens       *webhook.TokenService
	maxBodyBytes int64
}

// NewHandler 创建webhook处理器
func NewHandler(ingestor *webhook.Ingestor, tokens *webhook.TokenService, maxBodyBytes int64) *Handler {
	return &Handler{
		ingestor:     ingestor,
		tokens:       tokens,
		maxBodyBytes: maxBodyBytes,
	}
}

// Receive 接收git平台推送事件
// POST /api/v1/webhooks/:accountId/:token
func (h *Handler) Receive(c *gin.Context) {
	accountID := c.Param("accountId")
	token := c.Param("token")
	if accountID == "" || token == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("account id and token are required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("failed to read request body"))
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		httpx.FailErr(c, httpx.ErrParamIllegal("request body too large"))
		return
	}

	message, err := h.ingestor.Ingest(accountID, token, body, c.Request.Header)
	if err != nil {
		httpx.FailErr(c, httpx.ErrUnauthorized(err.Error()))
		return
	}

	httpx.OKMsg(c, message, nil)
}

// GetToken 查询账号级webhook token（首次调用时生成）
// GET /api/v1/accounts/:accountId/webhook-token
func (h *Handler) GetToken(c *gin.Context) {
	accountID := c.Param("accountId")

	token, err := h.tokens.GetOrCreate(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"accountId":    accountID,
		"webhookToken": token,
	})
}

// RotateToken 轮换账号级webhook token
// POST /api/v1/accounts/:accountId/webhook-token/rotate
func (h *Handler) RotateToken(c *gin.Context) {
	accountID := c.Param("accountId")

	token, err := h.tokens.Rotate(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"accountId":    accountID,
		"webhookToken": token,
	})
}

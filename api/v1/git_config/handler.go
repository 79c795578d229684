package git_config

import (
	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/httpx"
	"go_gitsync/internal/model"

	"github.com/gin-gonic/gin"
)

// Handler git连接器与同步绑定管理API
type Handler struct {
	gitConfigs *gitconf.Service
}

// NewHandler 创建git配置处理器
func NewHandler(gitConfigs *gitconf.Service) *Handler {
	return &Handler{gitConfigs: gitConfigs}
}

// CreateConnectorRequest 创建连接器的请求体
type CreateConnectorRequest struct {
	Name    string                    `json:"name" binding:"required"`
	URL     string                    `json:"url" binding:"required"`
	UrlType model.GitConnectorUrlType `json:"urlType"`
	AuthRef string                    `json:"authRef"`
}

// CreateConnector 创建git连接器
// POST /api/v1/accounts/:accountId/git-connectors/create
func (h *Handler) CreateConnector(c *gin.Context) {
	accountID := c.Param("accountId")

	var req CreateConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	conn := &model.GitConnector{
		AccountID: accountID,
		Name:      req.Name,
		URL:       req.URL,
		UrlType:   req.UrlType,
		AuthRef:   req.AuthRef,
	}
	if err := h.gitConfigs.CreateConnector(conn); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, conn)
}

// ListConnectors 查询账号的git连接器
// GET /api/v1/accounts/:accountId/git-connectors
func (h *Handler) ListConnectors(c *gin.Context) {
	accountID := c.Param("accountId")

	conns, err := h.gitConfigs.ListConnectors(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"connectors": conns,
		"count":      len(conns),
	})
}

// CreateConfigRequest 创建同步绑定的请求体
type CreateConfigRequest struct {
	EntityID       string `json:"entityId" binding:"required"`
	GitConnectorID string `json:"gitConnectorId" binding:"required"`
	BranchName     string `json:"branchName" binding:"required"`
	RepositoryName string `json:"repositoryName"`
	Enabled        *bool  `json:"enabled"`
}

// CreateConfig 创建同步绑定
// POST /api/v1/accounts/:accountId/git-sync-configs/create
func (h *Handler) CreateConfig(c *gin.Context) {
	accountID := c.Param("accountId")

	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg := &model.GitSyncConfig{
		AccountID:      accountID,
		EntityID:       req.EntityID,
		GitConnectorID: req.GitConnectorID,
		BranchName:     req.BranchName,
		RepositoryName: req.RepositoryName,
		Enabled:        enabled,
	}
	if err := h.gitConfigs.CreateConfig(cfg); err != nil {
		httpx.FailErr(c, httpx.ErrStateConflict(err.Error()))
		return
	}

	httpx.OK(c, cfg)
}

// ListConfigs 查询账号的同步绑定
// GET /api/v1/accounts/:accountId/git-sync-configs
func (h *Handler) ListConfigs(c *gin.Context) {
	accountID := c.Param("accountId")

	configs, err := h.gitConfigs.ListConfigs(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"configs": configs,
		"count":   len(configs),
	})
}

// ToggleConfigRequest 启停同步绑定的请求体
type ToggleConfigRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ToggleConfig 启用/停用同步绑定
// POST /api/v1/accounts/:accountId/git-sync-configs/:id/toggle
func (h *Handler) ToggleConfig(c *gin.Context) {
	accountID := c.Param("accountId")
	configID := c.Param("id")

	var req ToggleConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	if err := h.gitConfigs.SetConfigEnabled(accountID, configID, *req.Enabled); err != nil {
		if err == gitconf.ErrConfigurationNotFound {
			httpx.FailErr(c, httpx.ErrNotFound("git sync config not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"id":      configID,
		"enabled": *req.Enabled,
	})
}

package entities

import (
	"go_gitsync/internal/catalog"
	"go_gitsync/internal/httpx"
	"go_gitsync/internal/model"

	"github.com/gin-gonic/gin"
)

// Handler 目录实体与全量同步API，写操作同时入队对应的推送变更集
type Handler struct {
	catalog *catalog.Service
}

// NewHandler 创建目录实体处理器
func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{catalog: svc}
}

// CreateApplicationRequest 创建应用的请求体
type CreateApplicationRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateApplication 创建应用
// POST /api/v1/accounts/:accountId/applications/create
func (h *Handler) CreateApplication(c *gin.Context) {
	accountID := c.Param("accountId")

	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	app, err := h.catalog.CreateApplication(accountID, req.Name, req.Description)
	if err != nil {
		httpx.FailErr(c, httpx.ErrStateConflict(err.Error()))
		return
	}

	httpx.OK(c, app)
}

// ListApplications 查询账号的应用列表
// GET /api/v1/accounts/:accountId/applications
func (h *Handler) ListApplications(c *gin.Context) {
	accountID := c.Param("accountId")

	apps, err := h.catalog.ListApplications(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"applications": apps,
		"count":        len(apps),
	})
}

// DeleteApplication 删除应用及其目录
// POST /api/v1/accounts/:accountId/applications/:appId/delete
func (h *Handler) DeleteApplication(c *gin.Context) {
	accountID := c.Param("accountId")
	appID := c.Param("appId")

	cs, err := h.catalog.DeleteApplication(accountID, appID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrNotFound(err.Error()))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// UpsertEntityRequest 保存实体的请求体
type UpsertEntityRequest struct {
	Kind model.EntityKind `json:"kind" binding:"required"`
	Name string           `json:"name" binding:"required"`
	Body string           `json:"body" binding:"required"`
}

// UpsertAppEntity 保存应用级实体
// POST /api/v1/accounts/:accountId/applications/:appId/entities/upsert
func (h *Handler) UpsertAppEntity(c *gin.Context) {
	accountID := c.Param("accountId")
	appID := c.Param("appId")

	var req UpsertEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	cs, err := h.catalog.UpsertAppEntity(accountID, appID, req.Kind, req.Name, req.Body)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamIllegal(err.Error()))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// DeleteEntityRequest 删除实体的请求体
type DeleteEntityRequest struct {
	Kind model.EntityKind `json:"kind" binding:"required"`
	Name string           `json:"name" binding:"required"`
}

// DeleteAppEntity 删除应用级实体
// POST /api/v1/accounts/:accountId/applications/:appId/entities/delete
func (h *Handler) DeleteAppEntity(c *gin.Context) {
	accountID := c.Param("accountId")
	appID := c.Param("appId")

	var req DeleteEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	cs, err := h.catalog.DeleteAppEntity(accountID, appID, req.Kind, req.Name)
	if err != nil {
		httpx.FailErr(c, httpx.ErrNotFound(err.Error()))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// RenameEntityRequest 重命名实体的请求体
type RenameEntityRequest struct {
	Kind    model.EntityKind `json:"kind" binding:"required"`
	OldName string           `json:"oldName" binding:"required"`
	NewName string           `json:"newName" binding:"required"`
}

// RenameAppEntity 重命名应用级实体，随后自动追加一次全量同步
// POST /api/v1/accounts/:accountId/applications/:appId/entities/rename
func (h *Handler) RenameAppEntity(c *gin.Context) {
	accountID := c.Param("accountId")
	appID := c.Param("appId")

	var req RenameEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	cs, err := h.catalog.RenameAppEntity(accountID, appID, req.Kind, req.OldName, req.NewName)
	if err != nil {
		httpx.FailErr(c, httpx.ErrNotFound(err.Error()))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// UpsertAccountEntity 保存账号级实体
// POST /api/v1/accounts/:accountId/entities/upsert
func (h *Handler) UpsertAccountEntity(c *gin.Context) {
	accountID := c.Param("accountId")

	var req UpsertEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	cs, err := h.catalog.UpsertAccountEntity(accountID, req.Kind, req.Name, req.Body)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamIllegal(err.Error()))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// FullSyncRequest 触发全量同步的请求体
type FullSyncRequest struct {
	ForcePush bool `json:"forcePush"`
}

// TriggerFullSync 触发整账号全量同步
// POST /api/v1/accounts/:accountId/full-sync
func (h *Handler) TriggerFullSync(c *gin.Context) {
	accountID := c.Param("accountId")

	var req FullSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	cs, err := h.catalog.TriggerFullSync(accountID, req.ForcePush)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError(err.Error(), err))
		return
	}

	httpx.OK(c, gin.H{
		"changeSetId": cs.ID,
	})
}

// PreviewFullSync 预览全量同步将推送的文件列表，不入队
// GET /api/v1/accounts/:accountId/full-sync/preview
func (h *Handler) PreviewFullSync(c *gin.Context) {
	accountID := c.Param("accountId")

	changes, err := h.catalog.FullSyncDryRun(accountID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError(err.Error(), err))
		return
	}

	paths := make([]string, 0, len(changes))
	for _, change := range changes {
		paths = append(paths, change.FilePath)
	}
	httpx.OK(c, gin.H{
		"files": paths,
		"count": len(paths),
	})
}

package v1

import (
	"go_gitsync/api/v1/change_sets"
	"go_gitsync/api/v1/entities"
	"go_gitsync/api/v1/file_activities"
	"go_gitsync/api/v1/git_commits"
	"go_gitsync/api/v1/git_config"
	"go_gitsync/api/v1/git_tasks"
	"go_gitsync/api/v1/sync_errors"
	"go_gitsync/api/v1/webhooks"
	"go_gitsync/internal/activity"
	"go_gitsync/internal/alert"
	"go_gitsync/internal/catalog"
	"go_gitsync/internal/config"
	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/httpx"
	"go_gitsync/internal/queue"
	"go_gitsync/internal/syncerrors"
	"go_gitsync/internal/webhook"

	"github.com/gin-gonic/gin"
)

// Services carries the wired service layer into the router. The same
// instances back the queue runner, so handlers and the runner share state
// (waiter registrations in particular).
type Services struct {
	Config     *config.Config
	GitConfigs *gitconf.Service
	ChangeSets *queue.ChangeSetService
	Commits    *gitsync.CommitService
	Activities *activity.Service
	SyncErrors *syncerrors.Service
	Alerts     *alert.Service
	Catalog    *catalog.Service
	Dispatcher *gitsync.Service
	Ingestor   *webhook.Ingestor
	Tokens     *webhook.TokenService
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, s *Services) {
	webhooksHandler := webhooks.NewHandler(s.Ingestor, s.Tokens, s.Config.Webhook.MaxBodyBytes)
	gitTasksHandler := git_tasks.NewHandler(s.Dispatcher.Waiter(), s.Config.GitTask.WorkerToken)
	changeSetsHandler := change_sets.NewHandler(s.ChangeSets)
	commitsHandler := git_commits.NewHandler(s.Commits)
	activitiesHandler := file_activities.NewHandler(s.Activities)
	syncErrorsHandler := sync_errors.NewHandler(s.SyncErrors, s.Alerts)
	entitiesHandler := entities.NewHandler(s.Catalog)
	gitConfigHandler := git_config.NewHandler(s.GitConfigs)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", pingHandler)

		// Inbound callbacks, authenticated by their own tokens.
		v1.POST("/webhooks/:accountId/:token", webhooksHandler.Receive)
		v1.POST("/git-tasks/callback", gitTasksHandler.Callback)

		accounts := v1.Group("/accounts/:accountId")
		{
			// Git configuration
			accounts.GET("/git-connectors", gitConfigHandler.ListConnectors)
			accounts.POST("/git-connectors/create", gitConfigHandler.CreateConnector)
			accounts.GET("/git-sync-configs", gitConfigHandler.ListConfigs)
			accounts.POST("/git-sync-configs/create", gitConfigHandler.CreateConfig)
			accounts.POST("/git-sync-configs/:id/toggle", gitConfigHandler.ToggleConfig)

			// Webhook token management
			accounts.GET("/webhook-token", webhooksHandler.GetToken)
			accounts.POST("/webhook-token/rotate", webhooksHandler.RotateToken)

			// Catalog
			accounts.GET("/applications", entitiesHandler.ListApplications)
			accounts.POST("/applications/create", entitiesHandler.CreateApplication)
			accounts.POST("/applications/:appId/delete", entitiesHandler.DeleteApplication)
			accounts.POST("/applications/:appId/entities/upsert", entitiesHandler.UpsertAppEntity)
			accounts.POST("/applications/:appId/entities/delete", entitiesHandler.DeleteAppEntity)
			accounts.POST("/applications/:appId/entities/rename", entitiesHandler.RenameAppEntity)
			accounts.POST("/entities/upsert", entitiesHandler.UpsertAccountEntity)

			// Full sync
			accounts.POST("/full-sync", entitiesHandler.TriggerFullSync)
			accounts.GET("/full-sync/preview", entitiesHandler.PreviewFullSync)

			// Queue and history
			accounts.GET("/change-sets", changeSetsHandler.List)
			accounts.GET("/change-sets/:id", changeSetsHandler.Get)
			accounts.GET("/commits", commitsHandler.List)
			accounts.GET("/file-activities", activitiesHandler.List)

			// Errors and alerts
			accounts.GET("/sync-errors", syncErrorsHandler.List)
			accounts.POST("/sync-errors/discard", syncErrorsHandler.Discard)
			accounts.POST("/sync-errors/discard-all", syncErrorsHandler.DiscardAll)
			accounts.GET("/alerts", syncErrorsHandler.ListAlerts)
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

package model

import "time"

// Application 应用（目录树的二级根）
type Application struct {
	ID          string    `gorm:"primaryKey;size:40" json:"id"`
	AccountID   string    `gorm:"size:64;not null;index" json:"accountId"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (Application) TableName() string {
	return "applications"
}

// EntityKind 目录实体类别，决定其在目录树中的文件夹
type EntityKind string

// Application scoped kinds.
const (
	EntityKindService     EntityKind = "SERVICE"
	EntityKindEnvironment EntityKind = "ENVIRONMENT"
	EntityKindWorkflow    EntityKind = "WORKFLOW"
	EntityKindPipeline    EntityKind = "PIPELINE"
	EntityKindProvisioner EntityKind = "PROVISIONER"
	EntityKindAppTemplate EntityKind = "APP_TEMPLATE"
)

// Account scoped kinds.
const (
	EntityKindCloudProvider         EntityKind = "CLOUD_PROVIDER"
	EntityKindArtifactServer        EntityKind = "ARTIFACT_SERVER"
	EntityKindCollaborationProvider EntityKind = "COLLABORATION_PROVIDER"
	EntityKindVerificationProvider  EntityKind = "VERIFICATION_PROVIDER"
	EntityKindNotificationGroup     EntityKind = "NOTIFICATION_GROUP"
	EntityKindSourceRepoProvider    EntityKind = "SOURCE_REPO_PROVIDER"
	EntityKindTemplate              EntityKind = "TEMPLATE"
)

// AppEntity 应用级目录实体（service/environment/workflow/...），Body 为其YAML内容
type AppEntity struct {
	ID        string     `gorm:"primaryKey;size:40" json:"id"`
	AccountID string     `gorm:"size:64;not null;index:idx_app_entities_account_app" json:"accountId"`
	AppID     string     `gorm:"size:40;not null;index:idx_app_entities_account_app" json:"appId"`
	Kind      EntityKind `gorm:"size:32;not null" json:"kind"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Body      string     `gorm:"type:text" json:"body"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (AppEntity) TableName() string {
	return "app_entities"
}

// AccountEntity 账号级目录实体（cloud provider/artifact server/...）
type AccountEntity struct {
	ID        string     `gorm:"primaryKey;size:40" json:"id"`
	AccountID string     `gorm:"size:64;not null;index" json:"accountId"`
	Kind      EntityKind `gorm:"size:32;not null" json:"kind"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Body      string     `gorm:"type:text" json:"body"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (AccountEntity) TableName() string {
	return "account_entities"
}

// AccountDefaults 账号级 Defaults.yaml 内容
type AccountDefaults struct {
	AccountID string    `gorm:"primaryKey;size:64" json:"accountId"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (AccountDefaults) TableName() string {
	return "account_defaults"
}

// AppDefaults 应用级 Defaults.yaml 内容
type AppDefaults struct {
	AppID     string    `gorm:"primaryKey;size:40" json:"appId"`
	AccountID string    `gorm:"size:64;not null;index" json:"accountId"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (AppDefaults) TableName() string {
	return "app_defaults"
}

// GitSyncWebhook 每账号的 webhook token
type GitSyncWebhook struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    string    `gorm:"size:64;not null;uniqueIndex" json:"accountId"`
	WebhookToken string    `gorm:"size:64;not null;index" json:"webhookToken"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitSyncWebhook) TableName() string {
	return "git_sync_webhooks"
}

package model

import "time"

// GitConnectorUrlType 连接器URL类型
type GitConnectorUrlType string

const (
	// GitUrlTypeAccount points at a whole git account; bindings using it must
	// name their repository.
	GitUrlTypeAccount GitConnectorUrlType = "ACCOUNT"
	// GitUrlTypeRepo points at a single repository.
	GitUrlTypeRepo GitConnectorUrlType = "REPO"
)

// GitConnector git连接器（凭据与URL）
type GitConnector struct {
	ID           string              `gorm:"primaryKey;size:40" json:"id"`
	AccountID    string              `gorm:"size:64;not null;index" json:"accountId"`
	Name         string              `gorm:"size:128;not null" json:"name"`
	URL          string              `gorm:"size:512;not null" json:"url"`
	UrlType      GitConnectorUrlType `gorm:"size:16;not null;default:REPO" json:"urlType"`
	AuthRef      string              `gorm:"size:128" json:"authRef"`
	WebhookToken string              `gorm:"size:64;index" json:"webhookToken"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitConnector) TableName() string {
	return "git_connectors"
}

// GitSyncEntityType git同步配置的归属范围
type GitSyncEntityType string

const (
	GitSyncEntityAccount     GitSyncEntityType = "ACCOUNT"
	GitSyncEntityApplication GitSyncEntityType = "APPLICATION"
)

// GitSyncConfig 一个 (连接器, 仓库, 分支) 与账号/应用范围的绑定
type GitSyncConfig struct {
	ID             string            `gorm:"primaryKey;size:40" json:"id"`
	AccountID      string            `gorm:"size:64;not null;index" json:"accountId"`
	EntityID       string            `gorm:"size:64;not null" json:"entityId"`
	EntityType     GitSyncEntityType `gorm:"size:16;not null" json:"entityType"`
	GitConnectorID string            `gorm:"size:40;not null;index" json:"gitConnectorId"`
	BranchName     string            `gorm:"size:128;not null" json:"branchName"`
	RepositoryName string            `gorm:"size:255" json:"repositoryName"`
	Enabled        bool              `gorm:"not null;default:true" json:"enabled"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitSyncConfig) TableName() string {
	return "git_sync_configs"
}

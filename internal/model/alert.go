package model

import "time"

// AlertType 告警类型
type AlertType string

const (
	// AlertTypeGitConnectionError is scoped to (connector, repository, branch).
	AlertTypeGitConnectionError AlertType = "GIT_CONNECTION_ERROR"
	// AlertTypeGitSyncError is scoped to the account.
	AlertTypeGitSyncError AlertType = "GIT_SYNC_ERROR"
)

// AlertStatus 告警状态
type AlertStatus string

const (
	AlertStatusOpen   AlertStatus = "OPEN"
	AlertStatusClosed AlertStatus = "CLOSED"
)

// Alert 同步告警记录，幂等开启/关闭
type Alert struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID      string      `gorm:"size:64;not null;index:idx_alerts_account_type" json:"accountId"`
	AppID          string      `gorm:"size:64" json:"appId"`
	Type           AlertType   `gorm:"size:32;not null;index:idx_alerts_account_type" json:"type"`
	Status         AlertStatus `gorm:"size:16;not null;default:OPEN" json:"status"`
	Message        string      `gorm:"size:1024" json:"message"`
	GitConnectorID string      `gorm:"size:40" json:"gitConnectorId,omitempty"`
	BranchName     string      `gorm:"size:128" json:"branchName,omitempty"`
	RepositoryName string      `gorm:"size:255" json:"repositoryName,omitempty"`
	OpenedAt       time.Time   `gorm:"autoCreateTime" json:"openedAt"`
	ClosedAt       *time.Time  `json:"closedAt,omitempty"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (Alert) TableName() string {
	return "alerts"
}

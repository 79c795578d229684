package model

import "time"

// GitFileActivityStatus 文件处理状态
type GitFileActivityStatus string

const (
	GitFileActivityStatusQueued  GitFileActivityStatus = "QUEUED"
	GitFileActivityStatusSuccess GitFileActivityStatus = "SUCCESS"
	GitFileActivityStatusFailed  GitFileActivityStatus = "FAILED"
	GitFileActivityStatusSkipped GitFileActivityStatus = "SKIPPED"
)

// TriggeredBy 文件变更来源
type TriggeredBy string

const (
	TriggeredByUser     TriggeredBy = "USER"
	TriggeredByGit      TriggeredBy = "GIT"
	TriggeredByFullSync TriggeredBy = "FULL_SYNC"
)

// GitFileActivity 单文件单次提交尝试的审计记录
// ProcessingCommitID may differ from CommitID when a change is re-attempted
// under a later commit.
type GitFileActivity struct {
	ID                 int64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID          string                `gorm:"size:64;not null;index:idx_file_activities_account_path" json:"accountId"`
	AppID              string                `gorm:"size:64" json:"appId"`
	FilePath           string                `gorm:"size:512;not null;index:idx_file_activities_account_path" json:"filePath"`
	FileContent        string                `gorm:"type:text" json:"fileContent,omitempty"`
	CommitID           string                `gorm:"size:64;index" json:"commitId"`
	ProcessingCommitID string                `gorm:"size:64;index" json:"processingCommitId"`
	Status             GitFileActivityStatus `gorm:"size:16;not null" json:"status"`
	ErrorMessage       string                `gorm:"size:1024" json:"errorMessage,omitempty"`
	TriggeredBy        TriggeredBy           `gorm:"size:16;not null" json:"triggeredBy"`
	CreatedAt          time.Time             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time             `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitFileActivity) TableName() string {
	return "git_file_activities"
}

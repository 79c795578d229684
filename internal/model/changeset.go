package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChangeSetStatus 变更集状态
type ChangeSetStatus string

const (
	ChangeSetStatusQueued    ChangeSetStatus = "QUEUED"
	ChangeSetStatusRunning   ChangeSetStatus = "RUNNING"
	ChangeSetStatusCompleted ChangeSetStatus = "COMPLETED"
	ChangeSetStatusFailed    ChangeSetStatus = "FAILED"
	ChangeSetStatusSkipped   ChangeSetStatus = "SKIPPED"
)

// ChangeSetTerminalStatuses are the states a change set can never leave.
var ChangeSetTerminalStatuses = []ChangeSetStatus{
	ChangeSetStatusCompleted,
	ChangeSetStatusFailed,
	ChangeSetStatusSkipped,
}

// ChangeType git文件变更类型
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "ADD"
	ChangeTypeModify ChangeType = "MODIFY"
	ChangeTypeDelete ChangeType = "DELETE"
	ChangeTypeRename ChangeType = "RENAME"
)

// GitFileChange is one file-level mutation inside a change set. DELETE carries
// no content, RENAME carries both OldPath and Path.
type GitFileChange struct {
	FilePath                string     `json:"filePath"`
	FileContent             string     `json:"fileContent,omitempty"`
	ChangeType              ChangeType `json:"changeType"`
	OldFilePath             string     `json:"oldFilePath,omitempty"`
	SyncFromGit             bool       `json:"syncFromGit,omitempty"`
	ChangeFromAnotherCommit bool       `json:"changeFromAnotherCommit,omitempty"`
	CommitID                string     `json:"commitId,omitempty"`
	ProcessingCommitID      string     `json:"processingCommitId,omitempty"`
	CommitMessage           string     `json:"commitMessage,omitempty"`
}

// GitFileChangeList is stored as a JSON column on change_sets.
type GitFileChangeList []GitFileChange

// Value implements driver.Valuer
func (l GitFileChangeList) Value() (driver.Value, error) {
	if l == nil {
		l = GitFileChangeList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *GitFileChangeList) Scan(value interface{}) error {
	if value == nil {
		*l = GitFileChangeList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for GitFileChangeList", value)
	}
}

// GitWebhookRequestAttributes carries the raw inbound webhook a git->harness
// change set was created from, for later diff dispatch.
type GitWebhookRequestAttributes struct {
	GitConnectorID     string `json:"gitConnectorId"`
	BranchName         string `json:"branchName"`
	RepositoryFullName string `json:"repositoryFullName,omitempty"`
	HeadCommitID       string `json:"headCommitId,omitempty"`
	WebhookBody        string `json:"webhookBody,omitempty"`
	WebhookHeaders     string `json:"webhookHeaders,omitempty"`
}

// Value implements driver.Valuer
func (a GitWebhookRequestAttributes) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *GitWebhookRequestAttributes) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported type %T for GitWebhookRequestAttributes", value)
	}
}

// ChangeSet 变更集：一次 harness->git 推送或 git->harness 导入
type ChangeSet struct {
	ID                 string                       `gorm:"primaryKey;size:40" json:"id"`
	AccountID          string                       `gorm:"size:64;not null;index:idx_change_sets_account_status" json:"accountId"`
	AppID              string                       `gorm:"size:64;not null" json:"appId"`
	GitToHarness       bool                         `gorm:"not null;default:false" json:"gitToHarness"`
	FullSync           bool                         `gorm:"not null;default:false" json:"fullSync"`
	ForcePush          bool                         `gorm:"not null;default:false" json:"forcePush"`
	Status             ChangeSetStatus              `gorm:"size:16;not null;default:QUEUED;index:idx_change_sets_account_status" json:"status"`
	QueueKey           string                       `gorm:"size:255;not null;index" json:"queueKey"`
	FileChanges        GitFileChangeList            `gorm:"type:json" json:"fileChanges"`
	RetryCount         int                          `gorm:"not null;default:0" json:"retryCount"`
	PushRetryCount     int                          `gorm:"not null;default:0" json:"pushRetryCount"`
	ParentChangeSetID  *string                      `gorm:"size:40" json:"parentChangeSetId,omitempty"`
	Webhook            *GitWebhookRequestAttributes `gorm:"type:json" json:"webhook,omitempty"`
	StatusReason       string                       `gorm:"size:255" json:"statusReason,omitempty"`
	QueuedOn           time.Time                    `gorm:"autoCreateTime" json:"queuedOn"`
	CreatedAt          time.Time                    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time                    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (ChangeSet) TableName() string {
	return "change_sets"
}

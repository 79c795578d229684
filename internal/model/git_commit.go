package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GitCommitStatus git提交记录状态
type GitCommitStatus string

const (
	GitCommitStatusCompleted GitCommitStatus = "COMPLETED"
	GitCommitStatusFailed    GitCommitStatus = "FAILED"
	GitCommitStatusSkipped   GitCommitStatus = "SKIPPED"
)

// GitCommitAllStatuses is used for the already-processed check: a commit seen
// in any of these states must not be ingested again.
var GitCommitAllStatuses = []GitCommitStatus{
	GitCommitStatusCompleted,
	GitCommitStatusFailed,
	GitCommitStatusSkipped,
}

// GitCommitProcessedStatuses qualifies a commit as "last successfully
// processed" when deciding push preconditions and diff ranges.
var GitCommitProcessedStatuses = []GitCommitStatus{
	GitCommitStatusCompleted,
}

// FileProcessingSummary 单次提交的文件处理计数
type FileProcessingSummary struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
	SkippedCount int `json:"skippedCount"`
	QueuedCount  int `json:"queuedCount"`
	TotalCount   int `json:"totalCount"`
}

// Value implements driver.Valuer
func (s FileProcessingSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *FileProcessingSummary) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for FileProcessingSummary", value)
	}
}

// StringList is stored as a JSON array column.
type StringList = datatypes.JSONSlice[string]

// GitCommit 一次推送/拉取提交的处理记录
// A commit may satisfy multiple repository bindings, hence GitSyncConfigIDs.
type GitCommit struct {
	ID               int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID        string                 `gorm:"size:64;not null;uniqueIndex:uk_git_commits_account_commit" json:"accountId"`
	CommitID         string                 `gorm:"size:64;not null;uniqueIndex:uk_git_commits_account_commit" json:"commitId"`
	Status           GitCommitStatus        `gorm:"size:16;not null" json:"status"`
	ChangeSetID      string                 `gorm:"size:40;not null;index" json:"changeSetId"`
	GitSyncConfigIDs StringList             `gorm:"type:json" json:"gitSyncConfigIds"`
	CommitMessage    string                 `gorm:"size:512" json:"commitMessage"`
	GitToHarness     bool                   `gorm:"not null;default:false" json:"gitToHarness"`
	Summary          *FileProcessingSummary `gorm:"type:json" json:"summary,omitempty"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitCommit) TableName() string {
	return "git_commits"
}

package model

import "time"

// GitSyncError 未解决的 git<->harness 差异，按文件路径寻址
// Cleared when the file is later processed successfully or explicitly
// discarded by the user.
type GitSyncError struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     string     `gorm:"size:64;not null;uniqueIndex:uk_sync_errors_account_path" json:"accountId"`
	AppID         string     `gorm:"size:64" json:"appId"`
	FilePath      string     `gorm:"size:512;not null;uniqueIndex:uk_sync_errors_account_path" json:"filePath"`
	FileContent   string     `gorm:"type:text" json:"fileContent,omitempty"`
	ChangeType    ChangeType `gorm:"size:16" json:"changeType"`
	FailureReason string     `gorm:"size:1024" json:"failureReason"`
	GitToHarness  bool       `gorm:"not null;default:false" json:"gitToHarness"`
	FullSyncPath  bool       `gorm:"not null;default:false" json:"fullSyncPath"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (GitSyncError) TableName() string {
	return "git_sync_errors"
}

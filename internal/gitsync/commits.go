package gitsync

import (
	"errors"
	"fmt"
	"strings"

	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CommitService records every commit this system has pushed or ingested,
// once per (account, commitId). It backs webhook de-duplication and the
// last-processed-commit lookups that gate pushes and bound diffs.
type CommitService struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewCommitService creates a CommitService
func NewCommitService(db *gorm.DB, logger *logrus.Entry) *CommitService {
	return &CommitService{db: db, logger: logger.WithField("component", "git-commits")}
}

// SaveIfAbsent inserts a commit record unless one already exists for the
// same (account, commitId). Returns whether this call created the record.
// Result redelivery makes duplicate inserts normal, not an error.
func (s *CommitService) SaveIfAbsent(gc *model.GitCommit) (bool, error) {
	var existing model.GitCommit
	err := s.db.Where("account_id = ? AND commit_id = ?", gc.AccountID, gc.CommitID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to query git commits: %w", err)
	}

	if err := s.db.Create(gc).Error; err != nil {
		// A concurrent insert can still beat us to the unique index.
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to save git commit: %w", err)
	}
	return true, nil
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// IsAlreadyProcessed reports whether a head commit was already seen in any
// terminal state.
func (s *CommitService) IsAlreadyProcessed(accountID, commitID string) (bool, error) {
	var count int64
	err := s.db.Model(&model.GitCommit{}).
		Where("account_id = ? AND commit_id = ? AND status IN ?", accountID, commitID, model.GitCommitAllStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query git commits: %w", err)
	}
	return count > 0, nil
}

// LastProcessedCommitID returns the newest COMPLETED commit for a binding,
// or empty when the binding has no history yet.
func (s *CommitService) LastProcessedCommitID(accountID, gitSyncConfigID string) (string, error) {
	var gc model.GitCommit
	err := s.db.Where("account_id = ? AND status IN ? AND git_sync_config_ids LIKE ?",
		accountID, model.GitCommitProcessedStatuses, `%"`+gitSyncConfigID+`"%`).
		Order("created_at DESC, id DESC").
		First(&gc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query git commits: %w", err)
	}
	return gc.CommitID, nil
}

// List returns an account's commit records, newest first.
func (s *CommitService) List(accountID string, limit, offset int) ([]model.GitCommit, int64, error) {
	query := s.db.Model(&model.GitCommit{}).Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count git commits: %w", err)
	}

	var commits []model.GitCommit
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&commits).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query git commits: %w", err)
	}
	return commits, total, nil
}

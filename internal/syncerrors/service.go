package syncerrors

import (
	"fmt"

	"go_gitsync/internal/alert"
	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service tracks unresolved per-file sync failures. One row per
// (account, filePath); a later success or an explicit discard clears it.
// The account-wide GIT_SYNC_ERROR alert follows the row count: open while
// any row exists, closed when the last one goes.
type Service struct {
	db     *gorm.DB
	alerts *alert.Service
	logger *logrus.Entry
}

// NewService creates a Service
func NewService(db *gorm.DB, alerts *alert.Service, logger *logrus.Entry) *Service {
	return &Service{db: db, alerts: alerts, logger: logger.WithField("component", "sync-errors")}
}

// Upsert records a failure for a file path, replacing any earlier failure for
// the same path with the newest content and reason.
func (s *Service) Upsert(accountID, appID string, change model.GitFileChange, failureReason string, gitToHarness, fullSyncPath bool) error {
	var existing model.GitSyncError
	err := s.db.Where("account_id = ? AND file_path = ?", accountID, change.FilePath).First(&existing).Error
	switch {
	case err == nil:
		existing.AppID = appID
		existing.FileContent = change.FileContent
		existing.ChangeType = change.ChangeType
		existing.FailureReason = failureReason
		existing.GitToHarness = gitToHarness
		existing.FullSyncPath = fullSyncPath
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update sync error: %w", err)
		}
	case err == gorm.ErrRecordNotFound:
		record := &model.GitSyncError{
			AccountID:     accountID,
			AppID:         appID,
			FilePath:      change.FilePath,
			FileContent:   change.FileContent,
			ChangeType:    change.ChangeType,
			FailureReason: failureReason,
			GitToHarness:  gitToHarness,
			FullSyncPath:  fullSyncPath,
		}
		if err := s.db.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create sync error: %w", err)
		}
	default:
		return fmt.Errorf("failed to query sync errors: %w", err)
	}

	return s.alerts.OpenSyncErrorAlert(accountID)
}

// List returns an account's open sync errors, newest first.
func (s *Service) List(accountID string, limit, offset int) ([]model.GitSyncError, int64, error) {
	query := s.db.Model(&model.GitSyncError{}).Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sync errors: %w", err)
	}

	var list []model.GitSyncError
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query sync errors: %w", err)
	}
	return list, total, nil
}

// ListAll returns every open sync error for an account, for diff
// reinjection.
func (s *Service) ListAll(accountID string) ([]model.GitSyncError, error) {
	var list []model.GitSyncError
	if err := s.db.Where("account_id = ?", accountID).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to query sync errors: %w", err)
	}
	return list, nil
}

// ResolveForPaths clears the sync errors of files that were just processed
// successfully.
func (s *Service) ResolveForPaths(accountID string, filePaths []string) error {
	if len(filePaths) == 0 {
		return s.closeAlertIfClear(accountID)
	}

	tx := s.db.Where("account_id = ? AND file_path IN ?", accountID, filePaths).Delete(&model.GitSyncError{})
	if tx.Error != nil {
		return fmt.Errorf("failed to resolve sync errors: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.logger.Infof("Resolved %d sync errors for account %s", tx.RowsAffected, accountID)
	}
	return s.closeAlertIfClear(accountID)
}

// DiscardByIDs drops sync errors a user gave up on.
func (s *Service) DiscardByIDs(accountID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx := s.db.Where("account_id = ? AND id IN ?", accountID, ids).Delete(&model.GitSyncError{})
	if tx.Error != nil {
		return fmt.Errorf("failed to discard sync errors: %w", tx.Error)
	}
	return s.closeAlertIfClear(accountID)
}

// DiscardAll drops every sync error of an account.
func (s *Service) DiscardAll(accountID string) error {
	tx := s.db.Where("account_id = ?", accountID).Delete(&model.GitSyncError{})
	if tx.Error != nil {
		return fmt.Errorf("failed to discard sync errors: %w", tx.Error)
	}
	return s.closeAlertIfClear(accountID)
}

func (s *Service) closeAlertIfClear(accountID string) error {
	var remaining int64
	if err := s.db.Model(&model.GitSyncError{}).Where("account_id = ?", accountID).Count(&remaining).Error; err != nil {
		return fmt.Errorf("failed to count sync errors: %w", err)
	}
	if remaining == 0 {
		return s.alerts.CloseSyncErrorAlert(accountID)
	}
	return nil
}

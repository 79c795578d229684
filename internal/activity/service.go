package activity

import (
	"fmt"

	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service keeps the per-file audit trail: every commit attempt of every file
// gets a row, later resolved to SUCCESS/FAILED/SKIPPED keyed by
// (processingCommitId, filePath).
type Service struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewService creates a Service
func NewService(db *gorm.DB, logger *logrus.Entry) *Service {
	return &Service{db: db, logger: logger.WithField("component", "file-activity")}
}

// CreateForChanges writes one activity row per file change. Changes carried
// over from another commit are recorded under their original commit id so the
// trail shows where the content actually came from.
func (s *Service) CreateForChanges(accountID, appID string, changes []model.GitFileChange, status model.GitFileActivityStatus, triggeredBy model.TriggeredBy, errorMessage string) error {
	if len(changes) == 0 {
		return nil
	}

	activities := make([]model.GitFileActivity, 0, len(changes))
	for _, change := range changes {
		activities = append(activities, model.GitFileActivity{
			AccountID:          accountID,
			AppID:              appID,
			FilePath:           change.FilePath,
			FileContent:        change.FileContent,
			CommitID:           change.CommitID,
			ProcessingCommitID: change.ProcessingCommitID,
			Status:             status,
			ErrorMessage:       errorMessage,
			TriggeredBy:        triggeredBy,
		})
	}

	if err := s.db.Create(&activities).Error; err != nil {
		return fmt.Errorf("failed to create file activities: %w", err)
	}
	return nil
}

// UpdateStatus resolves the activities of one processing commit for the given
// paths. Returns the number of rows touched.
func (s *Service) UpdateStatus(accountID, processingCommitID string, filePaths []string, status model.GitFileActivityStatus, errorMessage string) (int64, error) {
	if len(filePaths) == 0 {
		return 0, nil
	}

	tx := s.db.Model(&model.GitFileActivity{}).
		Where("account_id = ? AND processing_commit_id = ? AND file_path IN ?", accountID, processingCommitID, filePaths).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
		})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to update file activities: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// ResolveQueued settles the still-QUEUED activities of the given paths and
// stamps them with the commit that processed them. Used when the processing
// commit id was not known at queue time.
func (s *Service) ResolveQueued(accountID string, filePaths []string, processingCommitID string, status model.GitFileActivityStatus, errorMessage string) (int64, error) {
	if len(filePaths) == 0 {
		return 0, nil
	}

	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}
	if processingCommitID != "" {
		updates["processing_commit_id"] = processingCommitID
	}

	tx := s.db.Model(&model.GitFileActivity{}).
		Where("account_id = ? AND status = ? AND file_path IN ?", accountID, model.GitFileActivityStatusQueued, filePaths).
		Updates(updates)
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to resolve queued file activities: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// RecordExtraError logs a failure that happened outside a commit boundary,
// but only when the message differs from the file's latest recorded error.
// Redelivered results would otherwise pile up identical rows.
func (s *Service) RecordExtraError(accountID, appID, filePath, errorMessage string, triggeredBy model.TriggeredBy) error {
	var latest model.GitFileActivity
	err := s.db.Where("account_id = ? AND file_path = ?", accountID, filePath).
		Order("id DESC").
		First(&latest).Error
	if err == nil && latest.Status == model.GitFileActivityStatusFailed && latest.ErrorMessage == errorMessage {
		return nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to query file activities: %w", err)
	}

	record := &model.GitFileActivity{
		AccountID:    accountID,
		AppID:        appID,
		FilePath:     filePath,
		Status:       model.GitFileActivityStatusFailed,
		ErrorMessage: errorMessage,
		TriggeredBy:  triggeredBy,
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record extra error activity: %w", err)
	}
	return nil
}

// List returns an account's activity trail, newest first, optionally
// narrowed to one file path.
func (s *Service) List(accountID, filePath string, limit, offset int) ([]model.GitFileActivity, int64, error) {
	query := s.db.Model(&model.GitFileActivity{}).Where("account_id = ?", accountID)
	if filePath != "" {
		query = query.Where("file_path = ?", filePath)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count file activities: %w", err)
	}

	var activities []model.GitFileActivity
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&activities).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query file activities: %w", err)
	}
	return activities, total, nil
}

// LatestStatusByPath returns the most recent activity per file path, used to
// summarize how a commit's files fared.
func (s *Service) LatestStatusByPath(accountID, processingCommitID string) (map[string]model.GitFileActivityStatus, error) {
	var activities []model.GitFileActivity
	err := s.db.Where("account_id = ? AND processing_commit_id = ?", accountID, processingCommitID).
		Order("id ASC").
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query file activities: %w", err)
	}

	latest := make(map[string]model.GitFileActivityStatus, len(activities))
	for _, a := range activities {
		latest[a.FilePath] = a.Status
	}
	return latest, nil
}

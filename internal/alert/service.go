package alert

import (
	"errors"
	"fmt"
	"time"

	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service opens and closes sync alerts idempotently: at most one OPEN alert
// exists per scope, and opening or closing an already open/closed scope is a
// no-op.
type Service struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewService creates a Service
func NewService(db *gorm.DB, logger *logrus.Entry) *Service {
	return &Service{db: db, logger: logger.WithField("component", "alert-service")}
}

// ConnectivityScope identifies one GIT_CONNECTION_ERROR alert.
type ConnectivityScope struct {
	AccountID      string
	GitConnectorID string
	RepositoryName string
	BranchName     string
}

// OpenConnectivityAlert raises a connection alert for a connector scope.
func (s *Service) OpenConnectivityAlert(scope ConnectivityScope, message string) error {
	var existing model.Alert
	err := s.db.Where("account_id = ? AND type = ? AND status = ? AND git_connector_id = ? AND repository_name = ? AND branch_name = ?",
		scope.AccountID, model.AlertTypeGitConnectionError, model.AlertStatusOpen,
		scope.GitConnectorID, scope.RepositoryName, scope.BranchName).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to query open alerts: %w", err)
	}

	a := &model.Alert{
		AccountID:      scope.AccountID,
		Type:           model.AlertTypeGitConnectionError,
		Status:         model.AlertStatusOpen,
		Message:        message,
		GitConnectorID: scope.GitConnectorID,
		RepositoryName: scope.RepositoryName,
		BranchName:     scope.BranchName,
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("failed to open connectivity alert: %w", err)
	}
	s.logger.Warnf("Opened connectivity alert for account %s connector %s", scope.AccountID, scope.GitConnectorID)
	return nil
}

// CloseConnectivityAlert closes the connection alert for a connector scope
// after a successful git operation.
func (s *Service) CloseConnectivityAlert(scope ConnectivityScope) error {
	return s.close(s.db.Model(&model.Alert{}).
		Where("account_id = ? AND type = ? AND status = ? AND git_connector_id = ? AND repository_name = ? AND branch_name = ?",
			scope.AccountID, model.AlertTypeGitConnectionError, model.AlertStatusOpen,
			scope.GitConnectorID, scope.RepositoryName, scope.BranchName))
}

// OpenSyncErrorAlert raises the account-wide alert that unresolved sync
// errors exist.
func (s *Service) OpenSyncErrorAlert(accountID string) error {
	var existing model.Alert
	err := s.db.Where("account_id = ? AND type = ? AND status = ?",
		accountID, model.AlertTypeGitSyncError, model.AlertStatusOpen).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to query open alerts: %w", err)
	}

	a := &model.Alert{
		AccountID: accountID,
		Type:      model.AlertTypeGitSyncError,
		Status:    model.AlertStatusOpen,
		Message:   "unresolved git sync errors exist for this account",
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("failed to open sync error alert: %w", err)
	}
	s.logger.Warnf("Opened sync error alert for account %s", accountID)
	return nil
}

// CloseSyncErrorAlert closes the account-wide sync error alert once the last
// sync error is resolved.
func (s *Service) CloseSyncErrorAlert(accountID string) error {
	return s.close(s.db.Model(&model.Alert{}).
		Where("account_id = ? AND type = ? AND status = ?",
			accountID, model.AlertTypeGitSyncError, model.AlertStatusOpen))
}

func (s *Service) close(query *gorm.DB) error {
	now := time.Now()
	tx := query.Updates(map[string]interface{}{
		"status":    model.AlertStatusClosed,
		"closed_at": &now,
	})
	if tx.Error != nil {
		return fmt.Errorf("failed to close alert: %w", tx.Error)
	}
	return nil
}

// ListOpen returns the open alerts for an account.
func (s *Service) ListOpen(accountID string) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.Where("account_id = ? AND status = ?", accountID, model.AlertStatusOpen).
		Order("opened_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	return alerts, nil
}

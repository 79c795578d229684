package catalog

import (
	"errors"
	"fmt"
	"strings"

	"go_gitsync/internal/model"
	"go_gitsync/internal/queue"
	"go_gitsync/internal/tree"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service is the write side of the catalog. Every mutation persists the
// entity and enqueues the matching harness->git change set, so the git
// repository follows the catalog.
type Service struct {
	db         *gorm.DB
	changeSets *queue.ChangeSetService
	trees      *tree.Builder
	logger     *logrus.Entry
}

// NewService creates a Service
func NewService(db *gorm.DB, changeSets *queue.ChangeSetService, trees *tree.Builder, logger *logrus.Entry) *Service {
	return &Service{
		db:         db,
		changeSets: changeSets,
		trees:      trees,
		logger:     logger.WithField("component", "catalog"),
	}
}

// CreateApplication registers an application and queues the push of its
// index file.
func (s *Service) CreateApplication(accountID, name, description string) (*model.Application, error) {
	var existing model.Application
	err := s.db.Where("account_id = ? AND name = ?", accountID, name).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("application %s already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}

	app := &model.Application{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Name:        name,
		Description: description,
	}
	if err := s.db.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	index, err := tree.RenderIndex(description)
	if err != nil {
		return nil, err
	}
	indexPath := strings.Join([]string{tree.SetupFolder, tree.ApplicationsFolder, name, tree.IndexFile}, "/")
	if _, err := s.enqueuePush(accountID, app.ID, model.GitFileChangeList{
		{FilePath: indexPath, FileContent: index, ChangeType: model.ChangeTypeAdd},
	}); err != nil {
		s.logger.Errorf("Failed to queue index push for new application %s: %v", name, err)
	}
	return app, nil
}

// ListApplications returns an account's applications ordered by name.
func (s *Service) ListApplications(accountID string) ([]model.Application, error) {
	var apps []model.Application
	err := s.db.Where("account_id = ?", accountID).Order("name ASC").Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	return apps, nil
}

// DeleteApplication removes an application with everything under it and
// queues the deletion of its whole folder.
func (s *Service) DeleteApplication(accountID, appID string) (*model.ChangeSet, error) {
	app, err := s.application(accountID, appID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Where("account_id = ? AND app_id = ?", accountID, appID).Delete(&model.AppEntity{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete app entities: %w", err)
	}
	if err := s.db.Where("app_id = ?", appID).Delete(&model.AppDefaults{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete app defaults: %w", err)
	}
	if err := s.db.Delete(&model.Application{}, "id = ?", appID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete application: %w", err)
	}

	folderPath := strings.Join([]string{tree.SetupFolder, tree.ApplicationsFolder, app.Name}, "/")
	return s.enqueuePush(accountID, accountID, model.GitFileChangeList{
		{FilePath: folderPath, ChangeType: model.ChangeTypeDelete},
	})
}

// UpsertAppEntity saves an application-scoped entity and queues its push.
func (s *Service) UpsertAppEntity(accountID, appID string, kind model.EntityKind, name, body string) (*model.ChangeSet, error) {
	if _, err := tree.RenderBody(name, body); err != nil {
		return nil, err
	}
	app, err := s.application(accountID, appID)
	if err != nil {
		return nil, err
	}

	changeType := model.ChangeTypeAdd
	var entity model.AppEntity
	err = s.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?", accountID, appID, kind, name).
		First(&entity).Error
	switch {
	case err == nil:
		changeType = model.ChangeTypeModify
		entity.Body = body
		if err := s.db.Save(&entity).Error; err != nil {
			return nil, fmt.Errorf("failed to update entity: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		entity = model.AppEntity{
			ID: uuid.NewString(), AccountID: accountID, AppID: appID,
			Kind: kind, Name: name, Body: body,
		}
		if err := s.db.Create(&entity).Error; err != nil {
			return nil, fmt.Errorf("failed to create entity: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}

	path, err := PathForAppEntity(app.Name, kind, name)
	if err != nil {
		return nil, err
	}
	return s.enqueuePush(accountID, appID, model.GitFileChangeList{
		{FilePath: path, FileContent: body, ChangeType: changeType},
	})
}

// DeleteAppEntity removes an entity and queues the file deletion.
func (s *Service) DeleteAppEntity(accountID, appID string, kind model.EntityKind, name string) (*model.ChangeSet, error) {
	app, err := s.application(accountID, appID)
	if err != nil {
		return nil, err
	}

	tx := s.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?", accountID, appID, kind, name).
		Delete(&model.AppEntity{})
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to delete entity: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, fmt.Errorf("entity %s/%s not found", kind, name)
	}

	path, err := PathForAppEntity(app.Name, kind, name)
	if err != nil {
		return nil, err
	}
	return s.enqueuePush(accountID, appID, model.GitFileChangeList{
		{FilePath: path, ChangeType: model.ChangeTypeDelete},
	})
}

// RenameAppEntity renames an entity. The rename itself pushes a RENAME
// change; a chained full sync follows so every file referring to the old
// name is rebuilt.
func (s *Service) RenameAppEntity(accountID, appID string, kind model.EntityKind, oldName, newName string) (*model.ChangeSet, error) {
	app, err := s.application(accountID, appID)
	if err != nil {
		return nil, err
	}

	var entity model.AppEntity
	err = s.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?", accountID, appID, kind, oldName).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %s/%s not found", kind, oldName)
		}
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	entity.Name = newName
	if err := s.db.Save(&entity).Error; err != nil {
		return nil, fmt.Errorf("failed to rename entity: %w", err)
	}

	oldPath, err := PathForAppEntity(app.Name, kind, oldName)
	if err != nil {
		return nil, err
	}
	newPath, err := PathForAppEntity(app.Name, kind, newName)
	if err != nil {
		return nil, err
	}

	renameCS, err := s.enqueuePush(accountID, appID, model.GitFileChangeList{
		{FilePath: newPath, OldFilePath: oldPath, FileContent: entity.Body, ChangeType: model.ChangeTypeRename},
	})
	if err != nil {
		return nil, err
	}

	// Chained full sync rebuilds anything that embeds the old name.
	fullSync := &model.ChangeSet{
		AccountID:         accountID,
		AppID:             appID,
		FullSync:          true,
		ParentChangeSetID: &renameCS.ID,
	}
	if err := s.changeSets.Save(fullSync); err != nil {
		s.logger.Errorf("Failed to queue chained full sync after rename: %v", err)
	}
	return renameCS, nil
}

// UpsertAccountEntity saves an account-scoped entity and queues its push.
func (s *Service) UpsertAccountEntity(accountID string, kind model.EntityKind, name, body string) (*model.ChangeSet, error) {
	if _, err := tree.RenderBody(name, body); err != nil {
		return nil, err
	}

	changeType := model.ChangeTypeAdd
	var entity model.AccountEntity
	err := s.db.Where("account_id = ? AND kind = ? AND name = ?", accountID, kind, name).First(&entity).Error
	switch {
	case err == nil:
		changeType = model.ChangeTypeModify
		entity.Body = body
		if err := s.db.Save(&entity).Error; err != nil {
			return nil, fmt.Errorf("failed to update entity: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		entity = model.AccountEntity{
			ID: uuid.NewString(), AccountID: accountID, Kind: kind, Name: name, Body: body,
		}
		if err := s.db.Create(&entity).Error; err != nil {
			return nil, fmt.Errorf("failed to create entity: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}

	path, err := PathForAccountEntity(kind, name)
	if err != nil {
		return nil, err
	}
	return s.enqueuePush(accountID, accountID, model.GitFileChangeList{
		{FilePath: path, FileContent: body, ChangeType: changeType},
	})
}

// TriggerFullSync queues a full sync of the whole account tree. The change
// list is built when the change set is dispatched, so it reflects the
// catalog at push time.
func (s *Service) TriggerFullSync(accountID string, forcePush bool) (*model.ChangeSet, error) {
	cs := &model.ChangeSet{
		AccountID: accountID,
		AppID:     accountID,
		FullSync:  true,
		ForcePush: forcePush,
	}
	if err := s.changeSets.Save(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// FullSyncDryRun builds the full change list fail-fast without queueing
// anything.
func (s *Service) FullSyncDryRun(accountID string) ([]model.GitFileChange, error) {
	changes, _, err := s.trees.FullSyncChanges(accountID, false, true)
	return changes, err
}

func (s *Service) enqueuePush(accountID, appID string, changes model.GitFileChangeList) (*model.ChangeSet, error) {
	cs := &model.ChangeSet{
		AccountID:   accountID,
		AppID:       appID,
		FileChanges: changes,
	}
	if err := s.changeSets.Save(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Service) application(accountID, appID string) (*model.Application, error) {
	var app model.Application
	err := s.db.Where("account_id = ? AND id = ?", accountID, appID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %s not found", appID)
		}
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	return &app, nil
}

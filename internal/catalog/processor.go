package catalog

import (
	"errors"
	"fmt"

	"go_gitsync/internal/gitsync"
	"go_gitsync/internal/model"
	"go_gitsync/internal/tree"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Processor applies git->harness file changes back onto the catalog. Each
// file succeeds or fails on its own; one bad document never blocks the rest
// of a commit.
type Processor struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewProcessor creates a Processor
func NewProcessor(db *gorm.DB, logger *logrus.Entry) *Processor {
	return &Processor{db: db, logger: logger.WithField("component", "change-processor")}
}

// ProcessGitChanges implements gitsync.ChangeProcessor.
func (p *Processor) ProcessGitChanges(accountID string, changes []model.GitFileChange) gitsync.ProcessOutcome {
	var outcome gitsync.ProcessOutcome
	for _, change := range changes {
		if err := p.apply(accountID, change); err != nil {
			p.logger.Warnf("Failed to apply %s %s: %v", change.ChangeType, change.FilePath, err)
			outcome.Failed = append(outcome.Failed, gitsync.FileFailure{
				Path:   change.FilePath,
				Reason: err.Error(),
			})
			continue
		}
		outcome.Succeeded = append(outcome.Succeeded, change.FilePath)
	}
	return outcome
}

func (p *Processor) apply(accountID string, change model.GitFileChange) error {
	ref, err := ParseEntityPath(change.FilePath)
	if err != nil {
		return err
	}

	if change.ChangeType != model.ChangeTypeDelete {
		if _, err := tree.RenderBody(change.FilePath, change.FileContent); err != nil {
			return err
		}
	}

	switch ref.Type {
	case RefAccountDefaults:
		return p.applyAccountDefaults(accountID, change)
	case RefAccountEntity:
		return p.applyAccountEntity(accountID, ref, change)
	case RefAppIndex:
		return p.applyAppIndex(accountID, ref, change)
	case RefAppDefaults:
		return p.applyAppDefaults(accountID, ref, change)
	case RefAppEntity:
		return p.applyAppEntity(accountID, ref, change)
	}
	return fmt.Errorf("unsupported path type for %s", change.FilePath)
}

func (p *Processor) applyAccountDefaults(accountID string, change model.GitFileChange) error {
	if change.ChangeType == model.ChangeTypeDelete {
		return p.db.Where("account_id = ?", accountID).Delete(&model.AccountDefaults{}).Error
	}

	var defaults model.AccountDefaults
	err := p.db.Where("account_id = ?", accountID).First(&defaults).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.db.Create(&model.AccountDefaults{AccountID: accountID, Body: change.FileContent}).Error
	}
	if err != nil {
		return err
	}
	defaults.Body = change.FileContent
	return p.db.Save(&defaults).Error
}

func (p *Processor) applyAccountEntity(accountID string, ref *EntityRef, change model.GitFileChange) error {
	if change.ChangeType == model.ChangeTypeDelete {
		return p.db.Where("account_id = ? AND kind = ? AND name = ?", accountID, ref.Kind, ref.Name).
			Delete(&model.AccountEntity{}).Error
	}

	var entity model.AccountEntity
	err := p.db.Where("account_id = ? AND kind = ? AND name = ?", accountID, ref.Kind, ref.Name).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.db.Create(&model.AccountEntity{
			ID: uuid.NewString(), AccountID: accountID, Kind: ref.Kind, Name: ref.Name, Body: change.FileContent,
		}).Error
	}
	if err != nil {
		return err
	}
	entity.Body = change.FileContent
	return p.db.Save(&entity).Error
}

// applyAppIndex creates the application on first sight of its Index.yaml.
func (p *Processor) applyAppIndex(accountID string, ref *EntityRef, change model.GitFileChange) error {
	if change.ChangeType == model.ChangeTypeDelete {
		return p.db.Where("account_id = ? AND name = ?", accountID, ref.AppName).
			Delete(&model.Application{}).Error
	}

	_, err := p.applicationByName(accountID, ref.AppName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.db.Create(&model.Application{
			ID: uuid.NewString(), AccountID: accountID, Name: ref.AppName,
		}).Error
	}
	return err
}

func (p *Processor) applyAppDefaults(accountID string, ref *EntityRef, change model.GitFileChange) error {
	app, err := p.applicationByName(accountID, ref.AppName)
	if err != nil {
		return fmt.Errorf("application %s not found for %s", ref.AppName, change.FilePath)
	}

	if change.ChangeType == model.ChangeTypeDelete {
		return p.db.Where("app_id = ?", app.ID).Delete(&model.AppDefaults{}).Error
	}

	var defaults model.AppDefaults
	err = p.db.Where("app_id = ?", app.ID).First(&defaults).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.db.Create(&model.AppDefaults{AppID: app.ID, AccountID: accountID, Body: change.FileContent}).Error
	}
	if err != nil {
		return err
	}
	defaults.Body = change.FileContent
	return p.db.Save(&defaults).Error
}

func (p *Processor) applyAppEntity(accountID string, ref *EntityRef, change model.GitFileChange) error {
	app, err := p.applicationByName(accountID, ref.AppName)
	if err != nil {
		return fmt.Errorf("application %s not found for %s", ref.AppName, change.FilePath)
	}

	if change.ChangeType == model.ChangeTypeDelete {
		return p.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?",
			accountID, app.ID, ref.Kind, ref.Name).
			Delete(&model.AppEntity{}).Error
	}

	var entity model.AppEntity
	err = p.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?",
		accountID, app.ID, ref.Kind, ref.Name).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entity = model.AppEntity{
			ID: uuid.NewString(), AccountID: accountID, AppID: app.ID,
			Kind: ref.Kind, Name: ref.Name, Body: change.FileContent,
		}
		if createErr := p.db.Create(&entity).Error; createErr != nil {
			return createErr
		}
	} else if err != nil {
		return err
	} else {
		entity.Body = change.FileContent
		if saveErr := p.db.Save(&entity).Error; saveErr != nil {
			return saveErr
		}
	}

	// A rename removes the old entity row once the new one is in place.
	if change.ChangeType == model.ChangeTypeRename && change.OldFilePath != "" {
		oldRef, err := ParseEntityPath(change.OldFilePath)
		if err == nil && oldRef.Type == RefAppEntity && oldRef.Name != ref.Name {
			return p.db.Where("account_id = ? AND app_id = ? AND kind = ? AND name = ?",
				accountID, app.ID, oldRef.Kind, oldRef.Name).
				Delete(&model.AppEntity{}).Error
		}
	}
	return nil
}

func (p *Processor) applicationByName(accountID, name string) (*model.Application, error) {
	var app model.Application
	err := p.db.Where("account_id = ? AND name = ?", accountID, name).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

package tree

import (
	"fmt"

	"go_gitsync/internal/model"

	"gorm.io/gorm"
)

// FullSyncChanges builds the complete ADD change list for an account. With
// forcePush, DELETE entries for every top-level category folder and every
// application folder are prepended so the remote tree is rebuilt from
// scratch. failFast aborts on the first render failure (dry run); otherwise
// failures are returned alongside the changes for sync-error bookkeeping.
func (b *Builder) FullSyncChanges(accountID string, forcePush, failFast bool) ([]model.GitFileChange, []RenderFailure, error) {
	root := b.BuildAccountTree(accountID)

	changes, failures, err := TraverseDirectory(root, "", failFast)
	if err != nil {
		return nil, nil, err
	}

	if forcePush {
		deletes, err := b.fullSyncDeletes(accountID)
		if err != nil {
			return nil, nil, err
		}
		changes = append(deletes, changes...)
	}
	return changes, failures, nil
}

// fullSyncDeletes lists the folders a force push wipes before re-adding
// everything.
func (b *Builder) fullSyncDeletes(accountID string) ([]model.GitFileChange, error) {
	var deletes []model.GitFileChange

	deletes = append(deletes, deleteChange(join(SetupFolder, DefaultsFile)))
	for _, sec := range accountSections {
		deletes = append(deletes, deleteChange(join(SetupFolder, sec.folder)))
	}

	var applications []model.Application
	err := b.db.Where("account_id = ?", accountID).Order("name ASC").Find(&applications).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load applications for delete list: %w", err)
	}
	appsBase := join(SetupFolder, ApplicationsFolder)
	for _, app := range applications {
		deletes = append(deletes, deleteChange(join(appsBase, app.Name)))
	}
	return deletes, nil
}

func deleteChange(path string) model.GitFileChange {
	return model.GitFileChange{FilePath: path, ChangeType: model.ChangeTypeDelete}
}

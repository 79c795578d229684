package db

import (
	"fmt"
	"log"

	"go_gitsync/internal/model"

	"gorm.io/gorm"
)

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	log.Println("Starting database migration...")

	// List of all models to migrate
	models := []interface{}{
		&model.ChangeSet{},
		&model.GitCommit{},
		&model.GitFileActivity{},
		&model.GitSyncError{},
		&model.GitConnector{},
		&model.GitSyncConfig{},
		&model.GitSyncWebhook{},
		&model.Alert{},
		&model.Application{},
		&model.AppEntity{},
		&model.AccountEntity{},
		&model.AccountDefaults{},
		&model.AppDefaults{},
	}

	// Run AutoMigrate for all models
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}

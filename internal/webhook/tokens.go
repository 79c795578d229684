package webhook

import (
	"errors"
	"fmt"
	"strings"

	"go_gitsync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenService mints and looks up the per-account webhook token that is
// embedded in the webhook URL handed to git hosts.
type TokenService struct {
	db *gorm.DB
}

// NewTokenService creates a TokenService
func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{db: db}
}

// GetOrCreate returns the account's webhook token, minting one on first use.
func (s *TokenService) GetOrCreate(accountID string) (string, error) {
	var record model.GitSyncWebhook
	err := s.db.Where("account_id = ?", accountID).First(&record).Error
	if err == nil {
		return record.WebhookToken, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to query webhook token: %w", err)
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	record = model.GitSyncWebhook{AccountID: accountID, WebhookToken: token}
	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to create webhook token: %w", err)
	}
	return token, nil
}

// Validate reports whether a token is the account's current webhook token.
func (s *TokenService) Validate(accountID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&model.GitSyncWebhook{}).
		Where("account_id = ? AND webhook_token = ?", accountID, token).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query webhook token: %w", err)
	}
	return count > 0, nil
}

// Rotate replaces the account's webhook token.
func (s *TokenService) Rotate(accountID string) (string, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	tx := s.db.Model(&model.GitSyncWebhook{}).
		Where("account_id = ?", accountID).
		Update("webhook_token", token)
	if tx.Error != nil {
		return "", fmt.Errorf("failed to rotate webhook token: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.GetOrCreate(accountID)
	}
	return token, nil
}

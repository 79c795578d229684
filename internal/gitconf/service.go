package gitconf

import (
	"errors"
	"fmt"
	"strings"

	"go_gitsync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GlobalAppID marks account-scoped work that is not tied to any application.
const GlobalAppID = "__GLOBAL_APP_ID__"

// ErrConfigurationNotFound means no git binding exists for the requested
// scope. For harness->git enqueue this is a legitimate "nothing to sync"
// outcome at some call sites and a hard error at others; callers decide.
var ErrConfigurationNotFound = errors.New("git sync configuration not found")

// Service resolves git bindings for account/app scopes and webhook origins.
type Service struct {
	db *gorm.DB
}

// NewService creates a Service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ForScope returns the single enabled binding for an account or application
// scope. Harness->git change sets must resolve to exactly one binding.
func (s *Service) ForScope(accountID, appID string) (*model.GitSyncConfig, error) {
	entityType := model.GitSyncEntityApplication
	entityID := appID
	if appID == GlobalAppID || appID == accountID {
		entityType = model.GitSyncEntityAccount
		entityID = accountID
	}

	var cfg model.GitSyncConfig
	err := s.db.Where("account_id = ? AND entity_id = ? AND entity_type = ? AND enabled = ?",
		accountID, entityID, entityType, true).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("failed to query git sync config: %w", err)
	}
	return &cfg, nil
}

// Connector loads the connector referenced by a binding.
func (s *Service) Connector(accountID, connectorID string) (*model.GitConnector, error) {
	var conn model.GitConnector
	err := s.db.Where("account_id = ? AND id = ?", accountID, connectorID).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("failed to query git connector: %w", err)
	}
	return &conn, nil
}

// ConnectorByWebhookToken resolves the connector addressed by an inbound
// webhook token.
func (s *Service) ConnectorByWebhookToken(accountID, token string) (*model.GitConnector, error) {
	var conn model.GitConnector
	err := s.db.Where("account_id = ? AND webhook_token = ?", accountID, token).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("git connector not found with webhook token %s", token)
		}
		return nil, fmt.Errorf("failed to query git connector: %w", err)
	}
	return &conn, nil
}

// ConnectorByRepositoryFullName resolves a connector through the account's
// enabled bindings by matching the repository a webhook reports. Used when
// the webhook was authenticated with the account-level token instead of a
// connector-scoped one.
func (s *Service) ConnectorByRepositoryFullName(accountID, repositoryFullName string) (*model.GitConnector, error) {
	if repositoryFullName == "" {
		return nil, fmt.Errorf("repository name is required to resolve git connector")
	}

	var configs []model.GitSyncConfig
	err := s.db.Where("account_id = ? AND enabled = ?", accountID, true).Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query git sync configs: %w", err)
	}

	for _, cfg := range configs {
		conn, err := s.Connector(accountID, cfg.GitConnectorID)
		if err != nil {
			continue
		}
		url := cleanupRepositoryName(RepositoryURL(conn, cfg.RepositoryName))
		if strings.HasSuffix(url, cleanupRepositoryName(repositoryFullName)) {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no git connector matches repository %s", repositoryFullName)
}

// ForWebhook returns every enabled binding matching a webhook's
// connector+branch, narrowed by repository full name when the connector is
// account scoped. Git->harness change sets must resolve to at least one.
func (s *Service) ForWebhook(accountID, connectorID, branchName, repositoryFullName string) ([]model.GitSyncConfig, error) {
	if connectorID == "" || branchName == "" {
		return nil, fmt.Errorf("connector id and branch name are required")
	}

	var configs []model.GitSyncConfig
	err := s.db.Where("account_id = ? AND git_connector_id = ? AND branch_name = ? AND enabled = ?",
		accountID, connectorID, branchName, true).
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query git sync configs: %w", err)
	}

	conn, err := s.Connector(accountID, connectorID)
	if err != nil {
		return nil, err
	}

	if conn.UrlType == model.GitUrlTypeAccount {
		if repositoryFullName == "" {
			return nil, fmt.Errorf("missing repository name when using account level git connector")
		}
		matched := make([]model.GitSyncConfig, 0, len(configs))
		for _, cfg := range configs {
			if matchesRepositoryFullName(conn.URL, cfg.RepositoryName, repositoryFullName) {
				matched = append(matched, cfg)
			}
		}
		configs = matched
	}

	if len(configs) == 0 {
		return nil, ErrConfigurationNotFound
	}
	return configs, nil
}

// CreateConnector registers a git connector. A connector-scoped webhook
// token is minted so git hosts can address this connector directly.
func (s *Service) CreateConnector(conn *model.GitConnector) error {
	if conn.AccountID == "" || conn.URL == "" {
		return fmt.Errorf("account id and url are required")
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.UrlType == "" {
		conn.UrlType = model.GitUrlTypeRepo
	}
	if conn.WebhookToken == "" {
		conn.WebhookToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := s.db.Create(conn).Error; err != nil {
		return fmt.Errorf("failed to create git connector: %w", err)
	}
	return nil
}

// ListConnectors returns an account's connectors.
func (s *Service) ListConnectors(accountID string) ([]model.GitConnector, error) {
	var conns []model.GitConnector
	err := s.db.Where("account_id = ?", accountID).Order("created_at ASC, id ASC").Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query git connectors: %w", err)
	}
	return conns, nil
}

// CreateConfig binds a scope to a (connector, repository, branch). Each scope
// may carry at most one enabled binding.
func (s *Service) CreateConfig(cfg *model.GitSyncConfig) error {
	if cfg.AccountID == "" || cfg.EntityID == "" || cfg.GitConnectorID == "" || cfg.BranchName == "" {
		return fmt.Errorf("account id, entity id, connector id and branch name are required")
	}
	if cfg.EntityType == "" {
		cfg.EntityType = model.GitSyncEntityApplication
		if cfg.EntityID == cfg.AccountID {
			cfg.EntityType = model.GitSyncEntityAccount
		}
	}
	if _, err := s.Connector(cfg.AccountID, cfg.GitConnectorID); err != nil {
		return err
	}
	if cfg.Enabled {
		var count int64
		err := s.db.Model(&model.GitSyncConfig{}).
			Where("account_id = ? AND entity_id = ? AND entity_type = ? AND enabled = ?",
				cfg.AccountID, cfg.EntityID, cfg.EntityType, true).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to query git sync configs: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("scope %s/%s already has an enabled git sync config", cfg.EntityType, cfg.EntityID)
		}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := s.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create git sync config: %w", err)
	}
	return nil
}

// ListConfigs returns an account's bindings.
func (s *Service) ListConfigs(accountID string) ([]model.GitSyncConfig, error) {
	var configs []model.GitSyncConfig
	err := s.db.Where("account_id = ?", accountID).Order("created_at ASC, id ASC").Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query git sync configs: %w", err)
	}
	return configs, nil
}

// SetConfigEnabled toggles a binding. Disabling stops selection of new work
// on its queue key; running change sets finish normally.
func (s *Service) SetConfigEnabled(accountID, configID string, enabled bool) error {
	tx := s.db.Model(&model.GitSyncConfig{}).
		Where("account_id = ? AND id = ?", accountID, configID).
		Update("enabled", enabled)
	if tx.Error != nil {
		return fmt.Errorf("failed to update git sync config: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrConfigurationNotFound
	}
	return nil
}

// QueueKey derives the mutual-exclusion/FIFO key for a binding:
// accountId:connectorId:repositoryName:branchName with empty segments omitted.
func QueueKey(accountID string, cfg *model.GitSyncConfig) string {
	segments := []string{accountID, cfg.GitConnectorID, cfg.RepositoryName, cfg.BranchName}
	nonEmpty := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg != "" {
			nonEmpty = append(nonEmpty, seg)
		}
	}
	return strings.Join(nonEmpty, ":")
}

// RepositoryURL expands an account-level connector URL with the binding's
// repository name.
func RepositoryURL(conn *model.GitConnector, repositoryName string) string {
	if conn.UrlType != model.GitUrlTypeAccount || repositoryName == "" {
		return conn.URL
	}
	return strings.TrimSuffix(conn.URL, "/") + "/" + cleanupRepositoryName(repositoryName)
}

func matchesRepositoryFullName(connectorURL, repositoryName, repositoryFullName string) bool {
	url := cleanupRepositoryName(strings.TrimSuffix(connectorURL, "/") + "/" + repositoryName)
	fullName := cleanupRepositoryName(repositoryFullName)
	return strings.HasSuffix(url, fullName)
}

func cleanupRepositoryName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimSuffix(name, "/")
	return strings.TrimSuffix(name, ".git")
}

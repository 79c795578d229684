package queue

import (
	"errors"
	"fmt"

	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	skipReasonSuperseded     = "superseded by a newer completed change set"
	skipReasonRetryExhausted = "max retry count exceeded"
)

// ChangeSetService owns the change-set queue: enqueueing, status
// transitions, candidate selection and the skip sweeps. All transitions out
// of QUEUED/RUNNING go through the guarded updates here so that concurrent
// runners can never double-claim or resurrect a terminal change set.
type ChangeSetService struct {
	db            *gorm.DB
	gitConfigs    *gitconf.Service
	logger        *logrus.Entry
	maxRetryCount int
}

// NewChangeSetService creates a ChangeSetService
func NewChangeSetService(db *gorm.DB, gitConfigs *gitconf.Service, logger *logrus.Entry, maxRetryCount int) *ChangeSetService {
	return &ChangeSetService{
		db:            db,
		gitConfigs:    gitConfigs,
		logger:        logger.WithField("component", "changeset-service"),
		maxRetryCount: maxRetryCount,
	}
}

// Save enqueues a change set. The queue key is always derived here, never
// trusted from the caller: harness->git keys come from the scope's binding,
// git->harness keys from the webhook attributes the change set carries.
func (s *ChangeSetService) Save(cs *model.ChangeSet) error {
	if cs.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}
	cs.Status = model.ChangeSetStatusQueued

	if cs.GitToHarness && cs.Webhook != nil {
		cs.QueueKey = webhookQueueKey(cs.AccountID, cs.Webhook)
	} else {
		cfg, err := s.gitConfigs.ForScope(cs.AccountID, cs.AppID)
		if err != nil {
			return err
		}
		cs.QueueKey = gitconf.QueueKey(cs.AccountID, cfg)
	}

	if err := s.db.Create(cs).Error; err != nil {
		return fmt.Errorf("failed to save change set: %w", err)
	}

	s.logger.Infof("Queued change set %s account=%s key=%s gitToHarness=%v fullSync=%v files=%d",
		cs.ID, cs.AccountID, cs.QueueKey, cs.GitToHarness, cs.FullSync, len(cs.FileChanges))
	return nil
}

func webhookQueueKey(accountID string, w *model.GitWebhookRequestAttributes) string {
	return gitconf.QueueKey(accountID, &model.GitSyncConfig{
		GitConnectorID: w.GitConnectorID,
		RepositoryName: w.RepositoryFullName,
		BranchName:     w.BranchName,
	})
}

// Get loads one change set scoped by account.
func (s *ChangeSetService) Get(accountID, id string) (*model.ChangeSet, error) {
	var cs model.ChangeSet
	err := s.db.Where("account_id = ? AND id = ?", accountID, id).First(&cs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("change set %s not found", id)
		}
		return nil, fmt.Errorf("failed to query change set: %w", err)
	}
	return &cs, nil
}

// List returns change sets for an account, newest first, optionally filtered
// by status.
func (s *ChangeSetService) List(accountID string, status model.ChangeSetStatus, limit, offset int) ([]model.ChangeSet, int64, error) {
	query := s.db.Model(&model.ChangeSet{}).Where("account_id = ?", accountID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count change sets: %w", err)
	}

	var list []model.ChangeSet
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query change sets: %w", err)
	}
	return list, total, nil
}

// AccountsWithQueuedWork returns the accounts that currently have at least
// one QUEUED change set. The runner iterates these instead of scanning every
// tenant.
func (s *ChangeSetService) AccountsWithQueuedWork() ([]string, error) {
	var accounts []string
	err := s.db.Model(&model.ChangeSet{}).
		Where("status = ?", model.ChangeSetStatusQueued).
		Distinct("account_id").
		Pluck("account_id", &accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts with queued work: %w", err)
	}
	return accounts, nil
}

// QueueKeysWithQueuedWork returns the distinct queue keys with QUEUED work
// for one account.
func (s *ChangeSetService) QueueKeysWithQueuedWork(accountID string) ([]string, error) {
	var keys []string
	err := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND status = ?", accountID, model.ChangeSetStatusQueued).
		Distinct("queue_key").
		Pluck("queue_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query queue keys: %w", err)
	}
	return keys, nil
}

// SelectNext picks and claims the next runnable change set for a queue key,
// or returns nil when nothing may run:
//
//  1. a RUNNING change set on the key blocks the whole key;
//  2. the account-wide RUNNING count is capped at maxRunning;
//  3. the FIFO head runs as-is when it is a full sync;
//  4. otherwise the oldest QUEUED git->harness change set on the key, if
//     any, jumps ahead of the head;
//  5. the claim itself is a QUEUED->RUNNING conditional update, so a lost
//     race against another runner selects nothing instead of double-running.
func (s *ChangeSetService) SelectNext(accountID, queueKey string, maxRunning int) (*model.ChangeSet, error) {
	var keyRunning int64
	err := s.db.Model(&model.ChangeSet{}).
		Where("queue_key = ? AND status = ?", queueKey, model.ChangeSetStatusRunning).
		Count(&keyRunning).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count running change sets on key: %w", err)
	}
	if keyRunning > 0 {
		return nil, nil
	}

	var accountRunning int64
	err = s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND status = ?", accountID, model.ChangeSetStatusRunning).
		Count(&accountRunning).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count running change sets on account: %w", err)
	}
	if accountRunning >= int64(maxRunning) {
		s.logger.Debugf("Account %s at running cap %d, deferring key %s", accountID, maxRunning, queueKey)
		return nil, nil
	}

	head, err := s.oldestQueued(accountID, queueKey, false)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, nil
	}

	candidate := head
	if !head.FullSync {
		gitHead, err := s.oldestQueued(accountID, queueKey, true)
		if err != nil {
			return nil, err
		}
		if gitHead != nil {
			candidate = gitHead
		}
	}

	claim := s.db.Model(&model.ChangeSet{}).
		Where("id = ? AND status = ?", candidate.ID, model.ChangeSetStatusQueued).
		Updates(map[string]interface{}{
			"status":        model.ChangeSetStatusRunning,
			"status_reason": "",
		})
	if claim.Error != nil {
		return nil, fmt.Errorf("failed to claim change set %s: %w", candidate.ID, claim.Error)
	}
	if claim.RowsAffected == 0 {
		// Another runner got here first.
		return nil, nil
	}

	candidate.Status = model.ChangeSetStatusRunning
	candidate.StatusReason = ""
	return candidate, nil
}

func (s *ChangeSetService) oldestQueued(accountID, queueKey string, gitToHarnessOnly bool) (*model.ChangeSet, error) {
	query := s.db.Where("account_id = ? AND queue_key = ? AND status = ?",
		accountID, queueKey, model.ChangeSetStatusQueued)
	if gitToHarnessOnly {
		query = query.Where("git_to_harness = ?", true)
	}

	var cs model.ChangeSet
	err := query.Order("queued_on ASC, created_at ASC, id ASC").First(&cs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query queued change sets: %w", err)
	}
	return &cs, nil
}

// UpdateStatus moves a non-terminal change set to the given status. Returns
// false when the change set was already terminal or does not exist.
func (s *ChangeSetService) UpdateStatus(accountID, id string, status model.ChangeSetStatus, reason string) (bool, error) {
	tx := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND id = ? AND status NOT IN ?", accountID, id, model.ChangeSetTerminalStatuses).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
		})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to update change set %s status: %w", id, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// RequeueWithRetry puts a dispatched-but-unprocessable change set back in the
// queue and burns one retry. The exhaustion sweep turns repeat offenders into
// SKIPPED.
func (s *ChangeSetService) RequeueWithRetry(accountID, id, reason string) (bool, error) {
	tx := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND id = ? AND status NOT IN ?", accountID, id, model.ChangeSetTerminalStatuses).
		Updates(map[string]interface{}{
			"status":        model.ChangeSetStatusQueued,
			"status_reason": reason,
			"retry_count":   gorm.Expr("retry_count + 1"),
		})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to requeue change set %s: %w", id, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// RequeueWithPushRetry requeues a push whose remote head precondition failed
// and burns one push retry. After the push retry budget is spent the next
// attempt pushes unconditionally.
func (s *ChangeSetService) RequeueWithPushRetry(accountID, id, reason string) (bool, error) {
	tx := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND id = ? AND status = ?", accountID, id, model.ChangeSetStatusRunning).
		Updates(map[string]interface{}{
			"status":           model.ChangeSetStatusQueued,
			"status_reason":    reason,
			"push_retry_count": gorm.Expr("push_retry_count + 1"),
		})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to requeue change set %s for push retry: %w", id, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// MarkSkippedIfSuperseded skips queued harness->git change sets that were
// created no later than the account's newest COMPLETED harness->git change
// set: everything they would push has already been rebuilt and pushed by the
// newer one. Full syncs are never skipped this way.
func (s *ChangeSetService) MarkSkippedIfSuperseded(accountID string) (int64, error) {
	var latest model.ChangeSet
	err := s.db.Where("account_id = ? AND status = ? AND git_to_harness = ? AND full_sync = ?",
		accountID, model.ChangeSetStatusCompleted, false, false).
		Order("created_at DESC, id DESC").
		First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query completed change sets: %w", err)
	}

	tx := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND status = ? AND git_to_harness = ? AND full_sync = ? AND created_at <= ?",
			accountID, model.ChangeSetStatusQueued, false, false, latest.CreatedAt).
		Updates(map[string]interface{}{
			"status":        model.ChangeSetStatusSkipped,
			"status_reason": skipReasonSuperseded,
		})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to skip superseded change sets: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.logger.Infof("Skipped %d superseded change sets for account %s", tx.RowsAffected, accountID)
	}
	return tx.RowsAffected, nil
}

// MarkSkippedOnRetryExhaustion skips queued change sets whose retry budget is
// spent.
func (s *ChangeSetService) MarkSkippedOnRetryExhaustion(accountID string) (int64, error) {
	tx := s.db.Model(&model.ChangeSet{}).
		Where("account_id = ? AND status = ? AND retry_count > ?",
			accountID, model.ChangeSetStatusQueued, s.maxRetryCount).
		Updates(map[string]interface{}{
			"status":        model.ChangeSetStatusSkipped,
			"status_reason": skipReasonRetryExhausted,
		})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to skip retry-exhausted change sets: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.logger.Infof("Skipped %d retry-exhausted change sets for account %s", tx.RowsAffected, accountID)
	}
	return tx.RowsAffected, nil
}

package gitsync

import (
	"context"
	"errors"
	"fmt"

	"go_gitsync/internal/activity"
	"go_gitsync/internal/alert"
	"go_gitsync/internal/config"
	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/model"
	"go_gitsync/internal/queue"
	"go_gitsync/internal/syncerrors"
	"go_gitsync/internal/tree"

	"github.com/sirupsen/logrus"
)

// FileFailure is one file a change processor could not apply.
type FileFailure struct {
	Path   string
	Reason string
}

// ProcessOutcome is the per-file result of applying git changes to the
// catalog.
type ProcessOutcome struct {
	Succeeded []string
	Failed    []FileFailure
}

// ChangeProcessor applies git->harness file changes to the catalog.
type ChangeProcessor interface {
	ProcessGitChanges(accountID string, changes []model.GitFileChange) ProcessOutcome
}

// Service drives the git side of a claimed change set: it dispatches tasks
// to the remote worker and reconciles their results. Every change set that
// enters Dispatch ends in a terminal status, except pushes requeued to wait
// for a remote head we have not seen yet.
type Service struct {
	changeSets *queue.ChangeSetService
	gitConfigs *gitconf.Service
	commits    *CommitService
	activities *activity.Service
	syncErrors *syncerrors.Service
	alerts     *alert.Service
	waiter     *Waiter
	tasks      TaskClient
	trees      *tree.Builder
	processor  ChangeProcessor
	cfg        config.GitTaskConfig
	logger     *logrus.Entry
}

// NewService creates a Service
func NewService(
	changeSets *queue.ChangeSetService,
	gitConfigs *gitconf.Service,
	commits *CommitService,
	activities *activity.Service,
	syncErrors *syncerrors.Service,
	alerts *alert.Service,
	waiter *Waiter,
	tasks TaskClient,
	trees *tree.Builder,
	processor ChangeProcessor,
	cfg config.GitTaskConfig,
	logger *logrus.Entry,
) *Service {
	return &Service{
		changeSets: changeSets,
		gitConfigs: gitConfigs,
		commits:    commits,
		activities: activities,
		syncErrors: syncErrors,
		alerts:     alerts,
		waiter:     waiter,
		tasks:      tasks,
		trees:      trees,
		processor:  processor,
		cfg:        cfg,
		logger:     logger.WithField("component", "gitsync"),
	}
}

// Waiter exposes the callback registry so the result endpoint can notify it.
func (s *Service) Waiter() *Waiter {
	return s.waiter
}

// Dispatch implements queue.Dispatcher. A returned error means the task
// never reached the worker and the runner should requeue; every other
// outcome is settled here or in reconciliation.
func (s *Service) Dispatch(ctx context.Context, cs *model.ChangeSet) error {
	if cs.GitToHarness {
		return s.handleGitChangeSet(ctx, cs)
	}
	return s.handleHarnessChangeSet(ctx, cs)
}

func (s *Service) handleHarnessChangeSet(ctx context.Context, cs *model.ChangeSet) error {
	cfg, err := s.gitConfigs.ForScope(cs.AccountID, cs.AppID)
	if err != nil {
		if errors.Is(err, gitconf.ErrConfigurationNotFound) {
			s.fail(cs, "no git sync configuration for scope")
			return nil
		}
		return err
	}
	conn, err := s.gitConfigs.Connector(cs.AccountID, cfg.GitConnectorID)
	if err != nil {
		s.fail(cs, fmt.Sprintf("git connector unavailable: %v", err))
		return nil
	}

	changes := []model.GitFileChange(cs.FileChanges)
	if cs.FullSync && len(changes) == 0 {
		changes, err = s.buildFullSyncChanges(cs)
		if err != nil {
			s.fail(cs, err.Error())
			return nil
		}
	}
	if len(changes) == 0 {
		s.skip(cs, "nothing to push")
		return nil
	}

	if err := ValidateChangePaths(changes); err != nil {
		s.fail(cs, err.Error())
		return nil
	}

	lastProcessed, err := s.commits.LastProcessedCommitID(cs.AccountID, cfg.ID)
	if err != nil {
		return err
	}
	// After the push retry budget is spent, and for full syncs, push
	// unconditionally; otherwise require the remote head to be the last
	// commit we processed.
	pushOnlyIfHeadSeen := cs.PushRetryCount != s.cfg.MaxPushRetry && !cs.FullSync && lastProcessed != ""

	triggeredBy := model.TriggeredByUser
	if cs.FullSync {
		triggeredBy = model.TriggeredByFullSync
	}
	if err := s.activities.CreateForChanges(cs.AccountID, cs.AppID, changes, model.GitFileActivityStatusQueued, triggeredBy, ""); err != nil {
		s.logger.Warnf("Failed to record queued activities for change set %s: %v", cs.ID, err)
	}

	snapshot := *cs
	waitID := s.waiter.Register(func(result *GitCommandResult) {
		s.reconcileSafely(&snapshot, func() {
			s.reconcilePush(&snapshot, conn, cfg, changes, result)
		})
	})

	req := &GitCommandRequest{
		WaitID:    waitID,
		AccountID: cs.AccountID,
		Command:   GitCommandCommitAndPush,
		Repo: RepositoryInfo{
			GitConnectorID: conn.ID,
			RepositoryURL:  gitconf.RepositoryURL(conn, cfg.RepositoryName),
			BranchName:     cfg.BranchName,
			AuthRef:        conn.AuthRef,
		},
		FileChanges:           changes,
		ForcePush:             cs.ForcePush,
		PushOnlyIfHeadSeen:    pushOnlyIfHeadSeen,
		LastProcessedCommitID: lastProcessed,
		TimeoutSec:            s.cfg.TimeoutSec,
	}
	if err := s.tasks.Queue(ctx, req); err != nil {
		s.waiter.Forget(waitID)
		return err
	}

	s.logger.Infof("Queued COMMIT_AND_PUSH for change set %s (files=%d headSeen=%v forcePush=%v)",
		cs.ID, len(changes), pushOnlyIfHeadSeen, cs.ForcePush)
	return nil
}

// buildFullSyncChanges assembles the account tree. Render failures become
// sync errors but do not stop the sync; remaining files still push.
func (s *Service) buildFullSyncChanges(cs *model.ChangeSet) ([]model.GitFileChange, error) {
	changes, failures, err := s.trees.FullSyncChanges(cs.AccountID, cs.ForcePush, false)
	if err != nil {
		return nil, fmt.Errorf("full sync build failed: %v", err)
	}
	for _, f := range failures {
		change := model.GitFileChange{FilePath: f.FilePath, ChangeType: model.ChangeTypeAdd}
		if err := s.syncErrors.Upsert(cs.AccountID, cs.AppID, change, f.Err.Error(), false, true); err != nil {
			s.logger.Warnf("Failed to record sync error for %s: %v", f.FilePath, err)
		}
	}
	return changes, nil
}

func (s *Service) handleGitChangeSet(ctx context.Context, cs *model.ChangeSet) error {
	w := cs.Webhook
	if w == nil {
		s.skip(cs, "change set carries no webhook attributes")
		return nil
	}

	if w.HeadCommitID != "" {
		processed, err := s.commits.IsAlreadyProcessed(cs.AccountID, w.HeadCommitID)
		if err != nil {
			return err
		}
		if processed {
			s.skip(cs, "commit already processed")
			return nil
		}
	}

	configs, err := s.gitConfigs.ForWebhook(cs.AccountID, w.GitConnectorID, w.BranchName, w.RepositoryFullName)
	if err != nil {
		s.skip(cs, fmt.Sprintf("no matching git sync configuration: %v", err))
		return nil
	}
	conn, err := s.gitConfigs.Connector(cs.AccountID, w.GitConnectorID)
	if err != nil {
		s.skip(cs, fmt.Sprintf("git connector unavailable: %v", err))
		return nil
	}

	lastProcessed, err := s.commits.LastProcessedCommitID(cs.AccountID, configs[0].ID)
	if err != nil {
		return err
	}

	snapshot := *cs
	waitID := s.waiter.Register(func(result *GitCommandResult) {
		s.reconcileSafely(&snapshot, func() {
			s.reconcileDiff(&snapshot, conn, configs, result)
		})
	})

	req := &GitCommandRequest{
		WaitID:    waitID,
		AccountID: cs.AccountID,
		Command:   GitCommandDiff,
		Repo: RepositoryInfo{
			GitConnectorID: conn.ID,
			RepositoryURL:  gitconf.RepositoryURL(conn, configs[0].RepositoryName),
			BranchName:     w.BranchName,
			AuthRef:        conn.AuthRef,
		},
		LastProcessedCommitID: lastProcessed,
		// Empty end commit means the worker diffs up to the remote HEAD.
		EndCommitID: w.HeadCommitID,
		TimeoutSec:  s.cfg.TimeoutSec,
	}
	if err := s.tasks.Queue(ctx, req); err != nil {
		s.waiter.Forget(waitID)
		return err
	}

	s.logger.Infof("Queued DIFF for change set %s (%s..%s)", cs.ID, lastProcessed, w.HeadCommitID)
	return nil
}

// reconcileSafely contains panics out of reconciliation. Without it a panic
// would surface in the callback endpoint's handler, leaving the change set
// RUNNING and its queue key blocked for good.
func (s *Service) reconcileSafely(cs *model.ChangeSet, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Panic while reconciling change set %s: %v", cs.ID, r)
			s.fail(cs, fmt.Sprintf("reconciliation panic: %v", r))
		}
	}()
	fn()
}

func (s *Service) fail(cs *model.ChangeSet, reason string) {
	s.logger.Warnf("Change set %s failed: %s", cs.ID, reason)
	if _, err := s.changeSets.UpdateStatus(cs.AccountID, cs.ID, model.ChangeSetStatusFailed, reason); err != nil {
		s.logger.Errorf("Failed to mark change set %s FAILED: %v", cs.ID, err)
	}
}

func (s *Service) skip(cs *model.ChangeSet, reason string) {
	s.logger.Infof("Change set %s skipped: %s", cs.ID, reason)
	if _, err := s.changeSets.UpdateStatus(cs.AccountID, cs.ID, model.ChangeSetStatusSkipped, reason); err != nil {
		s.logger.Errorf("Failed to mark change set %s SKIPPED: %v", cs.ID, err)
	}
}

func (s *Service) complete(cs *model.ChangeSet) {
	if _, err := s.changeSets.UpdateStatus(cs.AccountID, cs.ID, model.ChangeSetStatusCompleted, ""); err != nil {
		s.logger.Errorf("Failed to mark change set %s COMPLETED: %v", cs.ID, err)
	}
}

package gitsync

import (
	"go_gitsync/internal/alert"
	"go_gitsync/internal/model"
)

// reconcilePush settles a COMMIT_AND_PUSH result. Every branch ends with the
// change set in a terminal status, except the unseen-head requeue which puts
// it back in the queue with a spent push retry.
func (s *Service) reconcilePush(cs *model.ChangeSet, conn *model.GitConnector, cfg *model.GitSyncConfig, dispatched []model.GitFileChange, result *GitCommandResult) {
	scope := alert.ConnectivityScope{
		AccountID:      cs.AccountID,
		GitConnectorID: conn.ID,
		RepositoryName: cfg.RepositoryName,
		BranchName:     cfg.BranchName,
	}

	switch {
	case result.Status == GitCommandSuccess && result.CommitAndPush != nil:
		s.reconcilePushSuccess(cs, cfg, scope, dispatched, result.CommitAndPush)

	case result.Status == GitCommandFailure && result.ErrorCode == ErrorCodeUnseenHead:
		// The remote moved under us. Ingest the remote commits first, then
		// retry the push on top of them.
		s.logger.Infof("Change set %s push blocked by unseen remote head, requeueing (pushRetry=%d)",
			cs.ID, cs.PushRetryCount+1)
		if _, err := s.changeSets.RequeueWithPushRetry(cs.AccountID, cs.ID, "remote head not yet processed"); err != nil {
			s.logger.Errorf("Failed to requeue change set %s: %v", cs.ID, err)
		}

	case result.Status == GitCommandFailure:
		s.reconcilePushFailure(cs, scope, dispatched, result)

	default:
		s.fail(cs, "unrecognized git task result payload")
	}
}

func (s *Service) reconcilePushSuccess(cs *model.ChangeSet, cfg *model.GitSyncConfig, scope alert.ConnectivityScope, dispatched []model.GitFileChange, push *CommitAndPushResult) {
	if err := s.alerts.CloseConnectivityAlert(scope); err != nil {
		s.logger.Warnf("Failed to close connectivity alert: %v", err)
	}

	pushedPaths := changePaths(push.PushedChanges)
	if len(pushedPaths) == 0 {
		pushedPaths = changePaths(dispatched)
	}

	// Files the worker left out were already in sync on the remote.
	var skippedPaths []string
	pushed := make(map[string]bool, len(pushedPaths))
	for _, p := range pushedPaths {
		pushed[p] = true
	}
	for _, change := range dispatched {
		if !pushed[change.FilePath] {
			skippedPaths = append(skippedPaths, change.FilePath)
		}
	}

	summary := &model.FileProcessingSummary{
		SuccessCount: len(pushedPaths),
		SkippedCount: len(skippedPaths),
		TotalCount:   len(dispatched),
	}
	created, err := s.commits.SaveIfAbsent(&model.GitCommit{
		AccountID:        cs.AccountID,
		CommitID:         push.CommitID,
		Status:           model.GitCommitStatusCompleted,
		ChangeSetID:      cs.ID,
		GitSyncConfigIDs: model.StringList{cfg.ID},
		CommitMessage:    push.CommitMessage,
		GitToHarness:     false,
		Summary:          summary,
	})
	if err != nil {
		s.logger.Errorf("Failed to record commit %s: %v", push.CommitID, err)
	} else if !created {
		s.logger.Infof("Commit %s already recorded, result redelivery assumed", push.CommitID)
	}

	if _, err := s.activities.ResolveQueued(cs.AccountID, pushedPaths, push.CommitID, model.GitFileActivityStatusSuccess, ""); err != nil {
		s.logger.Warnf("Failed to resolve activities for commit %s: %v", push.CommitID, err)
	}
	if len(skippedPaths) > 0 {
		if _, err := s.activities.ResolveQueued(cs.AccountID, skippedPaths, push.CommitID, model.GitFileActivityStatusSkipped, "file already in sync"); err != nil {
			s.logger.Warnf("Failed to mark skipped activities for commit %s: %v", push.CommitID, err)
		}
	}
	if err := s.syncErrors.ResolveForPaths(cs.AccountID, pushedPaths); err != nil {
		s.logger.Warnf("Failed to resolve sync errors: %v", err)
	}

	s.complete(cs)
	s.logger.Infof("Change set %s pushed as commit %s (%d files, %d skipped)",
		cs.ID, push.CommitID, len(pushedPaths), len(skippedPaths))
}

func (s *Service) reconcilePushFailure(cs *model.ChangeSet, scope alert.ConnectivityScope, dispatched []model.GitFileChange, result *GitCommandResult) {
	reason := result.ErrorMessage
	if reason == "" {
		reason = "git push failed"
	}

	if _, err := s.activities.ResolveQueued(cs.AccountID, changePaths(dispatched), "", model.GitFileActivityStatusFailed, reason); err != nil {
		s.logger.Warnf("Failed to mark failed activities for change set %s: %v", cs.ID, err)
	}

	// Out-of-order pushes are an ordering problem, not a connectivity one.
	if result.ErrorCode != ErrorCodeCommitNotInOrder {
		if err := s.alerts.OpenConnectivityAlert(scope, reason); err != nil {
			s.logger.Warnf("Failed to open connectivity alert: %v", err)
		}
	}

	s.fail(cs, reason)
}

// reconcileDiff settles a DIFF result.
func (s *Service) reconcileDiff(cs *model.ChangeSet, conn *model.GitConnector, configs []model.GitSyncConfig, result *GitCommandResult) {
	scope := alert.ConnectivityScope{
		AccountID:      cs.AccountID,
		GitConnectorID: conn.ID,
		RepositoryName: configs[0].RepositoryName,
		BranchName:     configs[0].BranchName,
	}

	switch {
	case result.Status == GitCommandSuccess && result.Diff != nil:
		s.reconcileDiffSuccess(cs, scope, configs, result.Diff)

	case result.Status == GitCommandFailure:
		s.reconcileDiffFailure(cs, configs, result)

	default:
		s.fail(cs, "unrecognized git task result payload")
	}
}

func (s *Service) reconcileDiffSuccess(cs *model.ChangeSet, scope alert.ConnectivityScope, configs []model.GitSyncConfig, diff *DiffResult) {
	if err := s.alerts.CloseConnectivityAlert(scope); err != nil {
		s.logger.Warnf("Failed to close connectivity alert: %v", err)
	}

	changes := make([]model.GitFileChange, 0, len(diff.Changes))
	covered := make(map[string]bool, len(diff.Changes))
	for _, change := range diff.Changes {
		change.SyncFromGit = true
		if change.ProcessingCommitID == "" {
			change.ProcessingCommitID = diff.CommitID
		}
		if change.CommitID == "" {
			change.CommitID = diff.CommitID
		}
		changes = append(changes, change)
		covered[change.FilePath] = true
	}

	// Files stuck in a sync error get another chance piggybacked on this
	// diff, carried under their original commit.
	reinjected := s.reinjectSyncErrors(cs.AccountID, covered, diff.CommitID)
	carried := make(map[string]bool, len(reinjected))
	for _, change := range reinjected {
		carried[change.FilePath] = true
	}

	if len(changes)+len(reinjected) == 0 {
		s.recordDiffCommit(cs, configs, diff.CommitID, model.GitCommitStatusCompleted, &model.FileProcessingSummary{})
		s.complete(cs)
		return
	}

	// Carried-over files already have their trail from the commit that first
	// brought them in; only the diff's own changes open fresh QUEUED rows.
	if err := s.activities.CreateForChanges(cs.AccountID, cs.AppID, changes, model.GitFileActivityStatusQueued, model.TriggeredByGit, ""); err != nil {
		s.logger.Warnf("Failed to record queued activities for change set %s: %v", cs.ID, err)
	}

	all := append(changes, reinjected...)
	outcome := s.processor.ProcessGitChanges(cs.AccountID, all)

	if _, err := s.activities.ResolveQueued(cs.AccountID, outcome.Succeeded, diff.CommitID, model.GitFileActivityStatusSuccess, ""); err != nil {
		s.logger.Warnf("Failed to resolve activities: %v", err)
	}
	if err := s.syncErrors.ResolveForPaths(cs.AccountID, outcome.Succeeded); err != nil {
		s.logger.Warnf("Failed to resolve sync errors: %v", err)
	}

	failedByPath := make(map[string]string, len(outcome.Failed))
	for _, failure := range outcome.Failed {
		failedByPath[failure.Path] = failure.Reason
		if carried[failure.Path] {
			// A reattempted file failing the same way again is old news;
			// the trail only gains a row when the message changes.
			if err := s.activities.RecordExtraError(cs.AccountID, cs.AppID, failure.Path, failure.Reason, model.TriggeredByGit); err != nil {
				s.logger.Warnf("Failed to record extra error for %s: %v", failure.Path, err)
			}
			continue
		}
		if _, err := s.activities.ResolveQueued(cs.AccountID, []string{failure.Path}, diff.CommitID, model.GitFileActivityStatusFailed, failure.Reason); err != nil {
			s.logger.Warnf("Failed to mark failed activity for %s: %v", failure.Path, err)
		}
	}
	for _, change := range all {
		reason, failed := failedByPath[change.FilePath]
		if !failed {
			continue
		}
		if err := s.syncErrors.Upsert(cs.AccountID, cs.AppID, change, reason, true, false); err != nil {
			s.logger.Warnf("Failed to record sync error for %s: %v", change.FilePath, err)
		}
	}

	summary := &model.FileProcessingSummary{
		SuccessCount: len(outcome.Succeeded),
		FailureCount: len(outcome.Failed),
		TotalCount:   len(all),
	}
	s.recordDiffCommit(cs, configs, diff.CommitID, model.GitCommitStatusCompleted, summary)
	s.complete(cs)
	s.logger.Infof("Change set %s ingested commit %s (%d files, %d failed)",
		cs.ID, diff.CommitID, len(all), len(outcome.Failed))
}

// reinjectSyncErrors turns open git-origin sync errors not covered by a diff
// into carried-over changes so they are reattempted with the newest commit.
func (s *Service) reinjectSyncErrors(accountID string, covered map[string]bool, processingCommitID string) []model.GitFileChange {
	open, err := s.syncErrors.ListAll(accountID)
	if err != nil {
		s.logger.Warnf("Failed to list sync errors for reinjection: %v", err)
		return nil
	}

	var reinjected []model.GitFileChange
	for _, se := range open {
		if !se.GitToHarness || covered[se.FilePath] {
			continue
		}
		reinjected = append(reinjected, model.GitFileChange{
			FilePath:                se.FilePath,
			FileContent:             se.FileContent,
			ChangeType:              se.ChangeType,
			SyncFromGit:             true,
			ChangeFromAnotherCommit: true,
			ProcessingCommitID:      processingCommitID,
		})
	}
	return reinjected
}

func (s *Service) reconcileDiffFailure(cs *model.ChangeSet, configs []model.GitSyncConfig, result *GitCommandResult) {
	reason := result.ErrorMessage
	if reason == "" {
		reason = "git diff failed"
	}

	// Record the head commit so the same webhook is not retried forever.
	if cs.Webhook != nil && cs.Webhook.HeadCommitID != "" {
		status := model.GitCommitStatusFailed
		if result.ErrorCode == ErrorCodeCommitNotInOrder {
			status = model.GitCommitStatusSkipped
		}
		s.recordDiffCommit(cs, configs, cs.Webhook.HeadCommitID, status, nil)
	}

	s.fail(cs, reason)
}

func (s *Service) recordDiffCommit(cs *model.ChangeSet, configs []model.GitSyncConfig, commitID string, status model.GitCommitStatus, summary *model.FileProcessingSummary) {
	if commitID == "" {
		return
	}
	configIDs := make(model.StringList, 0, len(configs))
	for _, cfg := range configs {
		configIDs = append(configIDs, cfg.ID)
	}
	_, err := s.commits.SaveIfAbsent(&model.GitCommit{
		AccountID:        cs.AccountID,
		CommitID:         commitID,
		Status:           status,
		ChangeSetID:      cs.ID,
		GitSyncConfigIDs: configIDs,
		GitToHarness:     true,
		Summary:          summary,
	})
	if err != nil {
		s.logger.Errorf("Failed to record commit %s: %v", commitID, err)
	}
}

func changePaths(changes []model.GitFileChange) []string {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.FilePath)
	}
	return paths
}

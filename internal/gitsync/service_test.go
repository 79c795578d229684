package gitsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go_gitsync/internal/activity"
	"go_gitsync/internal/alert"
	"go_gitsync/internal/config"
	"go_gitsync/internal/db"
	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/model"
	"go_gitsync/internal/queue"
	"go_gitsync/internal/syncerrors"
	"go_gitsync/internal/tree"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type fakeTaskClient struct {
	requests []*GitCommandRequest
	err      error
}

func (f *fakeTaskClient) Queue(ctx context.Context, req *GitCommandRequest) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeTaskClient) last(t *testing.T) *GitCommandRequest {
	t.Helper()
	if len(f.requests) == 0 {
		t.Fatal("no task was queued")
	}
	return f.requests[len(f.requests)-1]
}

type fakeProcessor struct {
	received []model.GitFileChange
	failures []FileFailure
	panicMsg string
}

func (f *fakeProcessor) ProcessGitChanges(accountID string, changes []model.GitFileChange) ProcessOutcome {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.received = changes

	failed := make(map[string]bool, len(f.failures))
	for _, failure := range f.failures {
		failed[failure.Path] = true
	}
	var succeeded []string
	for _, change := range changes {
		if !failed[change.FilePath] {
			succeeded = append(succeeded, change.FilePath)
		}
	}
	return ProcessOutcome{Succeeded: succeeded, Failed: f.failures}
}

type fixture struct {
	gdb        *gorm.DB
	svc        *Service
	changeSets *queue.ChangeSetService
	tasks      *fakeTaskClient
	processor  *fakeProcessor
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	logger := testLogger()
	gitConfigs := gitconf.NewService(gdb)
	changeSets := queue.NewChangeSetService(gdb, gitConfigs, logger, 3)
	alerts := alert.NewService(gdb, logger)
	tasks := &fakeTaskClient{}
	processor := &fakeProcessor{}

	svc := NewService(
		changeSets,
		gitConfigs,
		NewCommitService(gdb, logger),
		activity.NewService(gdb, logger),
		syncerrors.NewService(gdb, alerts, logger),
		alerts,
		NewWaiter(logger),
		tasks,
		tree.NewBuilder(gdb, logger),
		processor,
		config.GitTaskConfig{WorkerURL: "http://worker", TimeoutSec: 600, MaxPushRetry: 3},
		logger,
	)

	f := &fixture{gdb: gdb, svc: svc, changeSets: changeSets, tasks: tasks, processor: processor}
	f.seedBinding(t)
	return f
}

func (f *fixture) seedBinding(t *testing.T) {
	t.Helper()

	if err := f.gdb.Create(&model.GitConnector{
		ID: "conn1", AccountID: "acct1", Name: "github",
		URL: "https://github.com/acme/config.git", UrlType: model.GitUrlTypeRepo,
	}).Error; err != nil {
		t.Fatalf("failed to seed connector: %v", err)
	}
	if err := f.gdb.Create(&model.GitSyncConfig{
		ID: "cfg1", AccountID: "acct1", EntityID: "app1", EntityType: model.GitSyncEntityApplication,
		GitConnectorID: "conn1", BranchName: "main", Enabled: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed git sync config: %v", err)
	}
}

func (f *fixture) seedProcessedCommit(t *testing.T, commitID string) {
	t.Helper()
	if err := f.gdb.Create(&model.GitCommit{
		AccountID: "acct1", CommitID: commitID, Status: model.GitCommitStatusCompleted,
		ChangeSetID: uuid.NewString(), GitSyncConfigIDs: model.StringList{"cfg1"},
	}).Error; err != nil {
		t.Fatalf("failed to seed commit: %v", err)
	}
}

func (f *fixture) runningChangeSet(t *testing.T, mutate func(cs *model.ChangeSet)) *model.ChangeSet {
	t.Helper()
	cs := &model.ChangeSet{
		ID:        uuid.NewString(),
		AccountID: "acct1",
		AppID:     "app1",
		Status:    model.ChangeSetStatusRunning,
		QueueKey:  "acct1:conn1:main",
		FileChanges: model.GitFileChangeList{
			{FilePath: "Setup/Applications/payments/Services/api.yaml", FileContent: "type: SERVICE\n", ChangeType: model.ChangeTypeModify},
		},
	}
	if mutate != nil {
		mutate(cs)
	}
	if err := f.gdb.Create(cs).Error; err != nil {
		t.Fatalf("failed to seed change set: %v", err)
	}
	return cs
}

func (f *fixture) reload(t *testing.T, id string) *model.ChangeSet {
	t.Helper()
	var cs model.ChangeSet
	if err := f.gdb.First(&cs, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload change set %s: %v", id, err)
	}
	return &cs
}

func (f *fixture) openAlerts(t *testing.T, alertType model.AlertType) int64 {
	t.Helper()
	var count int64
	if err := f.gdb.Model(&model.Alert{}).
		Where("account_id = ? AND type = ? AND status = ?", "acct1", alertType, model.AlertStatusOpen).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count alerts: %v", err)
	}
	return count
}

func TestDispatch_PushSuccess(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	req := f.tasks.last(t)
	if req.Command != GitCommandCommitAndPush {
		t.Fatalf("command = %s, want COMMIT_AND_PUSH", req.Command)
	}
	if req.PushOnlyIfHeadSeen {
		t.Error("no prior commit exists, push must be unconditional")
	}
	if req.Repo.RepositoryURL != "https://github.com/acme/config.git" || req.Repo.BranchName != "main" {
		t.Errorf("repo = %+v", req.Repo)
	}

	// Change set stays RUNNING until the worker reports back.
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusRunning {
		t.Fatalf("status after dispatch = %s, want RUNNING", got.Status)
	}

	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID:  req.WaitID,
		Command: GitCommandCommitAndPush,
		Status:  GitCommandSuccess,
		CommitAndPush: &CommitAndPushResult{
			CommitID:      "c1",
			CommitMessage: "harness sync",
			PushedChanges: []model.GitFileChange(cs.FileChanges),
		},
	})

	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}

	var commit model.GitCommit
	if err := f.gdb.First(&commit, "account_id = ? AND commit_id = ?", "acct1", "c1").Error; err != nil {
		t.Fatalf("commit not recorded: %v", err)
	}
	if commit.Status != model.GitCommitStatusCompleted || commit.GitToHarness {
		t.Errorf("commit = %+v", commit)
	}

	var act model.GitFileActivity
	if err := f.gdb.First(&act, "account_id = ? AND file_path = ?", "acct1", "Setup/Applications/payments/Services/api.yaml").Error; err != nil {
		t.Fatalf("activity not recorded: %v", err)
	}
	if act.Status != model.GitFileActivityStatusSuccess || act.ProcessingCommitID != "c1" {
		t.Errorf("activity = %+v", act)
	}
}

func TestDispatch_PushSuccessIdempotentOnRedelivery(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	req := f.tasks.last(t)

	result := &GitCommandResult{
		WaitID: req.WaitID, Command: GitCommandCommitAndPush, Status: GitCommandSuccess,
		CommitAndPush: &CommitAndPushResult{CommitID: "c1"},
	}
	f.svc.Waiter().Notify(result)
	// Redelivery: the wait token is consumed, nothing double-applies.
	if f.svc.Waiter().Notify(result) {
		t.Error("redelivered result should not find a callback")
	}

	var count int64
	f.gdb.Model(&model.GitCommit{}).Where("account_id = ? AND commit_id = ?", "acct1", "c1").Count(&count)
	if count != 1 {
		t.Errorf("commit recorded %d times, want 1", count)
	}
}

func TestDispatch_StaleHeadRequeues(t *testing.T) {
	f := newFixture(t)
	f.seedProcessedCommit(t, "prev")
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	req := f.tasks.last(t)
	if !req.PushOnlyIfHeadSeen {
		t.Fatal("with a processed commit on record the head check must be on")
	}
	if req.LastProcessedCommitID != "prev" {
		t.Errorf("last processed = %q, want prev", req.LastProcessedCommitID)
	}

	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: req.WaitID, Command: GitCommandCommitAndPush,
		Status: GitCommandFailure, ErrorCode: ErrorCodeUnseenHead, ErrorMessage: "remote head mismatch",
	})

	got := f.reload(t, cs.ID)
	if got.Status != model.ChangeSetStatusQueued {
		t.Errorf("status = %s, want QUEUED", got.Status)
	}
	if got.PushRetryCount != 1 {
		t.Errorf("push retry count = %d, want 1", got.PushRetryCount)
	}
	if f.openAlerts(t, model.AlertTypeGitConnectionError) != 0 {
		t.Error("stale head must not raise a connectivity alert")
	}
}

func TestDispatch_PushFailureOpensAlert(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	req := f.tasks.last(t)

	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: req.WaitID, Command: GitCommandCommitAndPush,
		Status: GitCommandFailure, ErrorCode: ErrorCodeConnectionFailed, ErrorMessage: "ssh: connect refused",
	})

	got := f.reload(t, cs.ID)
	if got.Status != model.ChangeSetStatusFailed || got.StatusReason != "ssh: connect refused" {
		t.Errorf("change set = %s (%s)", got.Status, got.StatusReason)
	}
	if f.openAlerts(t, model.AlertTypeGitConnectionError) != 1 {
		t.Error("connectivity alert not opened")
	}

	var act model.GitFileActivity
	f.gdb.First(&act, "account_id = ?", "acct1")
	if act.Status != model.GitFileActivityStatusFailed {
		t.Errorf("activity status = %s, want FAILED", act.Status)
	}

	// A later success closes the alert again.
	next := f.runningChangeSet(t, nil)
	if err := f.svc.Dispatch(context.Background(), next); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: f.tasks.last(t).WaitID, Command: GitCommandCommitAndPush, Status: GitCommandSuccess,
		CommitAndPush: &CommitAndPushResult{CommitID: "c2"},
	})
	if f.openAlerts(t, model.AlertTypeGitConnectionError) != 0 {
		t.Error("connectivity alert not closed after successful push")
	}
}

func TestDispatch_CommitNotInOrderSkipsAlert(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: f.tasks.last(t).WaitID, Command: GitCommandCommitAndPush,
		Status: GitCommandFailure, ErrorCode: ErrorCodeCommitNotInOrder, ErrorMessage: "commit out of order",
	})

	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if f.openAlerts(t, model.AlertTypeGitConnectionError) != 0 {
		t.Error("out-of-order failure must not raise a connectivity alert")
	}
}

func TestPushOnlyIfHeadSeen_Combinations(t *testing.T) {
	tests := []struct {
		name           string
		pushRetryCount int
		fullSync       bool
		priorCommit    bool
		want           bool
	}{
		{"plain push with history", 0, false, true, true},
		{"no prior commit", 0, false, false, false},
		{"full sync", 0, true, true, false},
		{"push retries exhausted", 3, false, true, false},
		{"retries exhausted and full sync", 3, true, true, false},
		{"mid retry with history", 2, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.priorCommit {
				f.seedProcessedCommit(t, "prev")
			}
			cs := f.runningChangeSet(t, func(cs *model.ChangeSet) {
				cs.PushRetryCount = tt.pushRetryCount
				cs.FullSync = tt.fullSync
			})

			if err := f.svc.Dispatch(context.Background(), cs); err != nil {
				t.Fatalf("dispatch failed: %v", err)
			}
			if got := f.tasks.last(t).PushOnlyIfHeadSeen; got != tt.want {
				t.Errorf("pushOnlyIfHeadSeen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatch_InvalidPathFailsBeforeGitWork(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, func(cs *model.ChangeSet) {
		cs.FileChanges = model.GitFileChangeList{
			{FilePath: "not/a/recognized/path.yaml", ChangeType: model.ChangeTypeAdd},
		}
	})

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(f.tasks.requests) != 0 {
		t.Error("task queued despite invalid path")
	}
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestDispatch_MissingBindingFails(t *testing.T) {
	f := newFixture(t)
	cs := f.runningChangeSet(t, func(cs *model.ChangeSet) {
		cs.AppID = "unbound-app"
	})

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestDispatch_WorkerUnreachableReturnsError(t *testing.T) {
	f := newFixture(t)
	f.tasks.err = errors.New("connection refused")
	cs := f.runningChangeSet(t, nil)

	if err := f.svc.Dispatch(context.Background(), cs); err == nil {
		t.Fatal("expected dispatch error")
	}
	// The registration must not leak when the task never left.
	if f.svc.Waiter().Pending() != 0 {
		t.Errorf("pending waiters = %d, want 0", f.svc.Waiter().Pending())
	}
	// The runner requeues; dispatch leaves the status alone.
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusRunning {
		t.Errorf("status = %s, want RUNNING", got.Status)
	}
}

func gitChangeSet(headCommit string) func(cs *model.ChangeSet) {
	return func(cs *model.ChangeSet) {
		cs.GitToHarness = true
		cs.FileChanges = nil
		cs.Webhook = &model.GitWebhookRequestAttributes{
			GitConnectorID: "conn1",
			BranchName:     "main",
			HeadCommitID:   headCommit,
		}
	}
}

func TestDispatch_GitChangeSetDiffSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedProcessedCommit(t, "prev")
	cs := f.runningChangeSet(t, gitChangeSet("h1"))

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	req := f.tasks.last(t)
	if req.Command != GitCommandDiff {
		t.Fatalf("command = %s, want DIFF", req.Command)
	}
	if req.LastProcessedCommitID != "prev" || req.EndCommitID != "h1" {
		t.Errorf("diff range = %s..%s", req.LastProcessedCommitID, req.EndCommitID)
	}

	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: req.WaitID, Command: GitCommandDiff, Status: GitCommandSuccess,
		Diff: &DiffResult{
			CommitID: "h1",
			Changes: []model.GitFileChange{
				{FilePath: "Setup/Applications/payments/Services/api.yaml", FileContent: "type: SERVICE\n", ChangeType: model.ChangeTypeModify},
			},
		},
	})

	if len(f.processor.received) != 1 {
		t.Fatalf("processor received %d changes, want 1", len(f.processor.received))
	}
	got := f.processor.received[0]
	if !got.SyncFromGit || got.ProcessingCommitID != "h1" {
		t.Errorf("processed change = %+v", got)
	}

	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}

	var commit model.GitCommit
	if err := f.gdb.First(&commit, "account_id = ? AND commit_id = ?", "acct1", "h1").Error; err != nil {
		t.Fatalf("commit not recorded: %v", err)
	}
	if !commit.GitToHarness || commit.Status != model.GitCommitStatusCompleted {
		t.Errorf("commit = %+v", commit)
	}
}

func TestDispatch_GitChangeSetDedup(t *testing.T) {
	f := newFixture(t)
	f.seedProcessedCommit(t, "h1")
	cs := f.runningChangeSet(t, gitChangeSet("h1"))

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(f.tasks.requests) != 0 {
		t.Error("task queued for an already processed commit")
	}
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusSkipped {
		t.Errorf("status = %s, want SKIPPED", got.Status)
	}
}

func TestDispatch_DiffSuccessReinjectsSyncErrors(t *testing.T) {
	f := newFixture(t)
	if err := f.gdb.Create(&model.GitSyncError{
		AccountID: "acct1", AppID: "app1",
		FilePath:      "Setup/Applications/payments/Environments/prod.yaml",
		FileContent:   "type: ENVIRONMENT\n",
		ChangeType:    model.ChangeTypeModify,
		FailureReason: "earlier failure",
		GitToHarness:  true,
	}).Error; err != nil {
		t.Fatalf("failed to seed sync error: %v", err)
	}
	cs := f.runningChangeSet(t, gitChangeSet("h2"))

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: f.tasks.last(t).WaitID, Command: GitCommandDiff, Status: GitCommandSuccess,
		Diff: &DiffResult{
			CommitID: "h2",
			Changes: []model.GitFileChange{
				{FilePath: "Setup/Applications/payments/Services/api.yaml", ChangeType: model.ChangeTypeModify},
			},
		},
	})

	if len(f.processor.received) != 2 {
		t.Fatalf("processor received %d changes, want diff change + reinjected", len(f.processor.received))
	}
	reinjected := f.processor.received[1]
	if reinjected.FilePath != "Setup/Applications/payments/Environments/prod.yaml" {
		t.Errorf("reinjected path = %s", reinjected.FilePath)
	}
	if !reinjected.ChangeFromAnotherCommit || !reinjected.SyncFromGit {
		t.Errorf("reinjected change flags = %+v", reinjected)
	}

	// Both files processed successfully, so the sync error is gone.
	var count int64
	f.gdb.Model(&model.GitSyncError{}).Where("account_id = ?", "acct1").Count(&count)
	if count != 0 {
		t.Errorf("sync errors remaining = %d, want 0", count)
	}
}

func TestDispatch_DiffProcessingFailureRecordsSyncError(t *testing.T) {
	f := newFixture(t)
	f.processor.failures = []FileFailure{
		{Path: "Setup/Applications/payments/Services/api.yaml", Reason: "unknown service field"},
	}
	cs := f.runningChangeSet(t, gitChangeSet("h3"))

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: f.tasks.last(t).WaitID, Command: GitCommandDiff, Status: GitCommandSuccess,
		Diff: &DiffResult{
			CommitID: "h3",
			Changes: []model.GitFileChange{
				{FilePath: "Setup/Applications/payments/Services/api.yaml", FileContent: "bad", ChangeType: model.ChangeTypeModify},
			},
		},
	})

	// Per-file failures do not fail the change set.
	if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}

	var se model.GitSyncError
	if err := f.gdb.First(&se, "account_id = ?", "acct1").Error; err != nil {
		t.Fatalf("sync error not recorded: %v", err)
	}
	if se.FailureReason != "unknown service field" || !se.GitToHarness {
		t.Errorf("sync error = %+v", se)
	}
	if f.openAlerts(t, model.AlertTypeGitSyncError) != 1 {
		t.Error("sync error alert not opened")
	}
}

func TestDispatch_ReinjectedFailureDedupsActivity(t *testing.T) {
	f := newFixture(t)
	if err := f.gdb.Create(&model.GitSyncError{
		AccountID: "acct1", AppID: "app1",
		FilePath:      "Setup/Applications/payments/Environments/prod.yaml",
		FileContent:   "bad",
		ChangeType:    model.ChangeTypeModify,
		FailureReason: "bad yaml",
		GitToHarness:  true,
	}).Error; err != nil {
		t.Fatalf("failed to seed sync error: %v", err)
	}
	f.processor.failures = []FileFailure{
		{Path: "Setup/Applications/payments/Environments/prod.yaml", Reason: "bad yaml"},
	}

	runDiff := func(head string) {
		t.Helper()
		cs := f.runningChangeSet(t, gitChangeSet(head))
		if err := f.svc.Dispatch(context.Background(), cs); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		f.svc.Waiter().Notify(&GitCommandResult{
			WaitID: f.tasks.last(t).WaitID, Command: GitCommandDiff, Status: GitCommandSuccess,
			Diff: &DiffResult{CommitID: head},
		})
	}

	failedRows := func() int64 {
		var count int64
		f.gdb.Model(&model.GitFileActivity{}).
			Where("account_id = ? AND file_path = ? AND status = ?",
				"acct1", "Setup/Applications/payments/Environments/prod.yaml", model.GitFileActivityStatusFailed).
			Count(&count)
		return count
	}

	// The same failure carried across consecutive diffs leaves one row.
	runDiff("h2")
	runDiff("h3")
	if got := failedRows(); got != 1 {
		t.Fatalf("failed activity rows after two identical failures = %d, want 1", got)
	}

	// A different message is news and gets its own row.
	f.processor.failures[0].Reason = "environment references unknown service"
	runDiff("h4")
	if got := failedRows(); got != 2 {
		t.Errorf("failed activity rows after changed message = %d, want 2", got)
	}
}

func TestDispatch_ReconcilePanicFailsChangeSet(t *testing.T) {
	f := newFixture(t)
	f.processor.panicMsg = "nil map write"
	cs := f.runningChangeSet(t, gitChangeSet("h9"))

	if err := f.svc.Dispatch(context.Background(), cs); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	delivered := f.svc.Waiter().Notify(&GitCommandResult{
		WaitID: f.tasks.last(t).WaitID, Command: GitCommandDiff, Status: GitCommandSuccess,
		Diff: &DiffResult{
			CommitID: "h9",
			Changes: []model.GitFileChange{
				{FilePath: "Setup/Applications/payments/Services/api.yaml", ChangeType: model.ChangeTypeModify},
			},
		},
	})
	if !delivered {
		t.Fatal("result was not delivered")
	}

	got := f.reload(t, cs.ID)
	if got.Status != model.ChangeSetStatusFailed {
		t.Fatalf("status = %s, want FAILED (a panic must not leave the change set RUNNING)", got.Status)
	}
	if !strings.Contains(got.StatusReason, "nil map write") {
		t.Errorf("status reason = %q", got.StatusReason)
	}
}

func TestDispatch_DiffFailureRecordsCommit(t *testing.T) {
	tests := []struct {
		name       string
		errorCode  ErrorCode
		wantStatus model.GitCommitStatus
	}{
		{"plain failure", ErrorCodeConnectionFailed, model.GitCommitStatusFailed},
		{"out of order", ErrorCodeCommitNotInOrder, model.GitCommitStatusSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cs := f.runningChangeSet(t, gitChangeSet("h4"))

			if err := f.svc.Dispatch(context.Background(), cs); err != nil {
				t.Fatalf("dispatch failed: %v", err)
			}
			f.svc.Waiter().Notify(&GitCommandResult{
				WaitID: f.tasks.last(t).WaitID, Command: GitCommandDiff,
				Status: GitCommandFailure, ErrorCode: tt.errorCode, ErrorMessage: "diff failed",
			})

			if got := f.reload(t, cs.ID); got.Status != model.ChangeSetStatusFailed {
				t.Errorf("status = %s, want FAILED", got.Status)
			}
			var commit model.GitCommit
			if err := f.gdb.First(&commit, "account_id = ? AND commit_id = ?", "acct1", "h4").Error; err != nil {
				t.Fatalf("head commit not recorded: %v", err)
			}
			if commit.Status != tt.wantStatus {
				t.Errorf("commit status = %s, want %s", commit.Status, tt.wantStatus)
			}
		})
	}
}

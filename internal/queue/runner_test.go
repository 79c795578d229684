package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go_gitsync/internal/gitconf"
	"go_gitsync/internal/lock"
	"go_gitsync/internal/model"
)

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []string
	err        error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, cs *model.ChangeSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, cs.ID)
	return d.err
}

func (d *fakeDispatcher) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dispatched...)
}

func runnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:             time.Second,
		MaxRunningPerAccount: 3,
		LockWaitTimeout:      50 * time.Millisecond,
		LockLease:            time.Second,
	}
}

func TestRunner_RunOnceDispatchesQueuedWork(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChangeSetService(gdb, gitconf.NewService(gdb), testLogger(), 3)
	dispatcher := &fakeDispatcher{}
	runner := NewRunner(svc, dispatcher, lock.NewMemoryLocker(), runnerConfig(), testLogger())

	now := time.Now()
	first := mkChangeSet(gdb, t, "acct1", "k1", false, false, model.ChangeSetStatusQueued, now.Add(-time.Minute))
	other := mkChangeSet(gdb, t, "acct2", "k2", false, false, model.ChangeSetStatusQueued, now)

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	got := dispatcher.ids()
	if len(got) != 2 {
		t.Fatalf("dispatched %d change sets, want 2: %v", len(got), got)
	}

	for _, id := range []string{first.ID, other.ID} {
		var stored model.ChangeSet
		if err := gdb.First(&stored, "id = ?", id).Error; err != nil {
			t.Fatalf("failed to reload %s: %v", id, err)
		}
		if stored.Status != model.ChangeSetStatusRunning {
			t.Errorf("change set %s status = %s, want RUNNING", id, stored.Status)
		}
	}
}

func TestRunner_OnePerKeyPerCycle(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChangeSetService(gdb, gitconf.NewService(gdb), testLogger(), 3)
	dispatcher := &fakeDispatcher{}
	runner := NewRunner(svc, dispatcher, lock.NewMemoryLocker(), runnerConfig(), testLogger())

	now := time.Now()
	mkChangeSet(gdb, t, "acct1", "k1", false, false, model.ChangeSetStatusQueued, now.Add(-2*time.Minute))
	mkChangeSet(gdb, t, "acct1", "k1", false, false, model.ChangeSetStatusQueued, now.Add(-time.Minute))

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if got := dispatcher.ids(); len(got) != 1 {
		t.Errorf("dispatched %d change sets from one key in one cycle, want 1", len(got))
	}

	// The first one is still RUNNING, so the next cycle selects nothing.
	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if got := dispatcher.ids(); len(got) != 1 {
		t.Errorf("dispatched %d total after second cycle, want still 1", len(got))
	}
}

func TestRunner_DispatchErrorRequeues(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChangeSetService(gdb, gitconf.NewService(gdb), testLogger(), 3)
	dispatcher := &fakeDispatcher{err: errors.New("task endpoint unreachable")}
	runner := NewRunner(svc, dispatcher, lock.NewMemoryLocker(), runnerConfig(), testLogger())

	cs := mkChangeSet(gdb, t, "acct1", "k1", false, false, model.ChangeSetStatusQueued, time.Now())

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	var stored model.ChangeSet
	if err := gdb.First(&stored, "id = ?", cs.ID).Error; err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if stored.Status != model.ChangeSetStatusQueued {
		t.Errorf("status = %s, want QUEUED after failed dispatch", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", stored.RetryCount)
	}
}

func TestRunner_SkipsLockedAccount(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChangeSetService(gdb, gitconf.NewService(gdb), testLogger(), 3)
	dispatcher := &fakeDispatcher{}
	locker := lock.NewMemoryLocker()
	runner := NewRunner(svc, dispatcher, locker, runnerConfig(), testLogger())

	mkChangeSet(gdb, t, "acct1", "k1", false, false, model.ChangeSetStatusQueued, time.Now())

	lease, err := locker.Acquire(context.Background(), "gitsync:queue:acct1", time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("failed to pre-take lock: %v", err)
	}
	defer lease.Release(context.Background())

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if got := dispatcher.ids(); len(got) != 0 {
		t.Errorf("dispatched %d change sets while account was locked, want 0", len(got))
	}
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_gitsync/internal/lock"
	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
)

// Dispatcher hands a claimed (RUNNING) change set to the git task pipeline.
// A returned error means the work never left the process; the runner
// requeues in that case.
type Dispatcher interface {
	Dispatch(ctx context.Context, cs *model.ChangeSet) error
}

// RunnerConfig 队列轮询配置
type RunnerConfig struct {
	Interval             time.Duration
	MaxRunningPerAccount int
	LockWaitTimeout      time.Duration
	LockLease            time.Duration
}

// Runner drives the queue: each cycle it sweeps and selects per account
// under a distributed lock, then dispatches whatever became runnable.
// Multiple instances may run the loop concurrently; the lock plus the
// guarded claim in SelectNext keep them from stepping on each other.
type Runner struct {
	changeSets *ChangeSetService
	dispatcher Dispatcher
	locker     lock.Locker
	cfg        RunnerConfig
	logger     *logrus.Entry
}

// NewRunner creates a Runner
func NewRunner(changeSets *ChangeSetService, dispatcher Dispatcher, locker lock.Locker, cfg RunnerConfig, logger *logrus.Entry) *Runner {
	return &Runner{
		changeSets: changeSets,
		dispatcher: dispatcher,
		locker:     locker,
		cfg:        cfg,
		logger:     logger.WithField("component", "queue-runner"),
	}
}

// RunOnce 执行一次扫描
func (r *Runner) RunOnce(ctx context.Context) error {
	accounts, err := r.changeSets.AccountsWithQueuedWork()
	if err != nil {
		return err
	}

	for _, accountID := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.processAccount(ctx, accountID); err != nil {
			r.logger.Errorf("Failed to process account %s: %v", accountID, err)
		}
	}
	return nil
}

func (r *Runner) processAccount(ctx context.Context, accountID string) error {
	lease, err := r.locker.Acquire(ctx, "gitsync:queue:"+accountID, r.cfg.LockWaitTimeout, r.cfg.LockLease)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			// Another instance owns this account right now.
			r.logger.Debugf("Account %s locked elsewhere, skipping cycle", accountID)
			return nil
		}
		return fmt.Errorf("failed to lock account %s: %w", accountID, err)
	}
	defer lease.Release(ctx)

	if _, err := r.changeSets.MarkSkippedOnRetryExhaustion(accountID); err != nil {
		r.logger.Warnf("Retry-exhaustion sweep failed for account %s: %v", accountID, err)
	}
	if _, err := r.changeSets.MarkSkippedIfSuperseded(accountID); err != nil {
		r.logger.Warnf("Supersede sweep failed for account %s: %v", accountID, err)
	}

	keys, err := r.changeSets.QueueKeysWithQueuedWork(accountID)
	if err != nil {
		return err
	}

	for _, key := range keys {
		cs, err := r.changeSets.SelectNext(accountID, key, r.cfg.MaxRunningPerAccount)
		if err != nil {
			r.logger.Errorf("Selection failed for key %s: %v", key, err)
			continue
		}
		if cs == nil {
			continue
		}
		r.dispatch(ctx, cs)
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, cs *model.ChangeSet) {
	r.logger.Infof("Dispatching change set %s key=%s gitToHarness=%v fullSync=%v",
		cs.ID, cs.QueueKey, cs.GitToHarness, cs.FullSync)

	if err := r.dispatcher.Dispatch(ctx, cs); err != nil {
		r.logger.Errorf("Dispatch failed for change set %s: %v", cs.ID, err)
		if _, rqErr := r.changeSets.RequeueWithRetry(cs.AccountID, cs.ID, err.Error()); rqErr != nil {
			r.logger.Errorf("Failed to requeue change set %s: %v", cs.ID, rqErr)
		}
	}
}

// RunLoop 循环执行
func (r *Runner) RunLoop(ctx context.Context) {
	r.logger.Infof("Starting queue runner loop (interval=%v)", r.cfg.Interval)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if err := r.RunOnce(ctx); err != nil {
		r.logger.Errorf("Initial run failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Queue runner loop stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Errorf("Run failed: %v", err)
			}
		}
	}
}

package gitsync

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Callback receives the result of one dispatched git task.
type Callback func(result *GitCommandResult)

// Waiter maps wait tokens to result callbacks. Each token fires at most
// once; results for unknown tokens (worker retries, restarts) are logged and
// dropped.
type Waiter struct {
	mu        sync.Mutex
	callbacks map[string]Callback
	logger    *logrus.Entry
}

// NewWaiter creates a Waiter
func NewWaiter(logger *logrus.Entry) *Waiter {
	return &Waiter{
		callbacks: make(map[string]Callback),
		logger:    logger.WithField("component", "waiter"),
	}
}

// Register stores a callback under a fresh wait token.
func (w *Waiter) Register(cb Callback) string {
	waitID := uuid.NewString()
	w.mu.Lock()
	w.callbacks[waitID] = cb
	w.mu.Unlock()
	return waitID
}

// Forget drops a registration whose task was never queued.
func (w *Waiter) Forget(waitID string) {
	w.mu.Lock()
	delete(w.callbacks, waitID)
	w.mu.Unlock()
}

// Notify fires and removes the callback for a result's wait token. Returns
// false when the token is unknown or already consumed.
func (w *Waiter) Notify(result *GitCommandResult) bool {
	w.mu.Lock()
	cb, ok := w.callbacks[result.WaitID]
	if ok {
		delete(w.callbacks, result.WaitID)
	}
	w.mu.Unlock()

	if !ok {
		w.logger.Warnf("Dropping result for unknown wait id %s (command=%s status=%s)",
			result.WaitID, result.Command, result.Status)
		return false
	}
	cb(result)
	return true
}

// Pending returns the number of outstanding registrations.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.callbacks)
}

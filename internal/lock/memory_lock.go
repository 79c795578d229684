package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is a process-local Locker used by tests and single-node
// deployments. Leases carry a token and expire like their Redis
// counterparts, so a holder whose lease lapsed cannot release a successor's
// lock.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
}

type memoryEntry struct {
	token  string
	expiry time.Time
}

// NewMemoryLocker creates a MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry)}
}

// Acquire polls the in-process table until the wait budget runs out.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		if l.tryAcquire(key, token, lease) {
			return &memoryLease{locker: l, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *MemoryLocker) tryAcquire(key, token string, lease time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.held[key]; ok && time.Now().Before(entry.expiry) {
		return false
	}
	l.held[key] = memoryEntry{token: token, expiry: time.Now().Add(lease)}
	return true
}

// release deletes the key only while it still holds the caller's token.
func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.held[key]; ok && entry.token == token {
		delete(l.held, key)
	}
}

type memoryLease struct {
	locker   *MemoryLocker
	key      string
	token    string
	released sync.Once
}

func (m *memoryLease) Release(ctx context.Context) {
	m.released.Do(func() {
		m.locker.release(m.key, m.token)
	})
}

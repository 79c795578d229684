package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock could not be taken within the
// caller's wait budget. Callers treat this as "skip this cycle", not as a
// failure.
var ErrNotAcquired = errors.New("lock not acquired within wait timeout")

// Lease is a held lock. Release is safe to call multiple times and must be
// called on every exit path; the lease duration is only a safety net against
// a crashed holder.
type Lease interface {
	Release(ctx context.Context)
}

// Locker hands out advisory, time-bounded leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (Lease, error)
}

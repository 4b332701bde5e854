package graph

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultLockWarningThreshold is how long a tracker lock acquisition may block
// before a warning is logged.
const DefaultLockWarningThreshold = 100 * time.Millisecond

type tryLocker interface {
	TryLock() bool
	Lock()
	Unlock()
}

type readLocker struct{ mu *sync.RWMutex }

func (r readLocker) TryLock() bool { return r.mu.TryRLock() }
func (r readLocker) Lock()         { r.mu.RLock() }
func (r readLocker) Unlock()       { r.mu.RUnlock() }

// timedLock acquires l and logs a warning when that blocked for longer than
// threshold. Long waits on the tracker usually mean a reader is holding it
// across a slow operation. The returned func releases the lock.
type timedLock struct {
	threshold time.Duration
	logger    *slog.Logger
	metrics   MetricsCollector
}

func (tl timedLock) acquire(l tryLocker, op string) func() {
	if l.TryLock() {
		return l.Unlock
	}

	start := time.Now()
	l.Lock()
	waited := time.Since(start)

	tl.metrics.RecordLockWait(op, waited)
	if waited > tl.threshold {
		tl.logger.Warn("lock acquisition blocked",
			"op", op,
			"waited", waited,
			"threshold", tl.threshold,
		)
	}
	return l.Unlock
}

package deploy

import "sync"

// LockManager hands out per-target-directory deployment locks so two
// overlapping webhook deliveries for the same directory never race the
// git sequence. Different targets deploy concurrently.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// TryLock attempts to acquire the lock for a target directory without
// blocking. Returns false when a deployment for that directory is
// already in flight; the caller should reject the delivery.
func (lm *LockManager) TryLock(targetDir string) bool {
	lm.mu.Lock()
	lock, exists := lm.locks[targetDir]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[targetDir] = lock
	}
	lm.mu.Unlock()

	return lock.TryLock()
}

// Unlock releases the lock for a target directory. Safe to call for a
// directory that was never locked.
func (lm *LockManager) Unlock(targetDir string) {
	lm.mu.Lock()
	lock := lm.locks[targetDir]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}

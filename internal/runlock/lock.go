package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 50 * time.Millisecond

// Lock serializes commits for one dataset name across processes.
type Lock struct {
	path  string
	flock *flock.Flock
}

func Path(dir string, name string) string {
	return filepath.Join(dir, ".locks", name+".lock")
}

// Acquire blocks until the lock for name under dir is held or ctx is done.
func Acquire(ctx context.Context, dir string, name string) (*Lock, error) {
	lockPath := Path(dir, name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory failed: %w", err)
	}
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s is held by another run", lockPath)
	}
	return &Lock{path: lockPath, flock: fileLock}, nil
}

// TryAcquire returns immediately with an error when another holder has the lock.
func TryAcquire(dir string, name string) (*Lock, error) {
	lockPath := Path(dir, name)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory failed: %w", err)
	}
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s is held by another run", lockPath)
	}
	return &Lock{path: lockPath, flock: fileLock}, nil
}

func (lock *Lock) Path() string {
	if lock == nil {
		return ""
	}
	return lock.path
}

func (lock *Lock) Release() {
	if lock == nil || lock.flock == nil {
		return
	}
	_ = lock.flock.Unlock()
}

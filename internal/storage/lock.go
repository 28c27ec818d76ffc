package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RootLock keeps a second process from opening the same library root
type RootLock struct {
	lock *flock.Flock
}

// AcquireRootLock takes the exclusive lock file of a library layout
func AcquireRootLock(l Layout) (*RootLock, error) {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}
	fl := flock.New(l.LockFile())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock library %s: %w", filepath.Base(l.Root), err)
	}
	if !ok {
		return nil, fmt.Errorf("library %s is already opened by another process", l.Root)
	}
	return &RootLock{lock: fl}, nil
}

// Release unlocks the root
func (r *RootLock) Release() error {
	if r == nil || r.lock == nil {
		return nil
	}
	return r.lock.Unlock()
}

package importer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// BatchLock admits one import batch at a time. Waiters are admitted in the
// order they called Acquire.
type BatchLock struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

// NewBatchLock creates an unlocked BatchLock
func NewBatchLock() *BatchLock {
	return &BatchLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done
func (l *BatchLock) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.held.Store(true)
	return nil
}

// TryAcquire takes the lock only if it is free and nobody is queued for it
func (l *BatchLock) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.held.Store(true)
	return true
}

// Release frees the lock. Releasing an unlocked BatchLock panics.
func (l *BatchLock) Release() {
	if !l.held.Swap(false) {
		panic("importer: release of unlocked BatchLock")
	}
	l.sem.Release(1)
}

// Busy reports whether a batch currently holds the lock
func (l *BatchLock) Busy() bool {
	return l.held.Load()
}

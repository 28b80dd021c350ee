package cache

import (
	"context"
	"sync"
	"time"
)

type heldLock struct {
	token   uint64
	expires time.Time
}

// InMemoryLocker implements Locker within one process.
// Suitable for single-instance deployments and tests.
type InMemoryLocker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	next  uint64
	nowFn func() time.Time
}

// NewInMemoryLocker creates an in-memory locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		held:  make(map[string]heldLock),
		nowFn: time.Now,
	}
}

// TryLock takes key unless an unexpired holder has it
func (l *InMemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, false, nil
	}
	l.next++
	token := l.next
	l.held[key] = heldLock{token: token, expires: now.Add(ttl)}

	unlock := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		h, ok := l.held[key]
		if !ok || h.token != token {
			return ErrLockNotHeld
		}
		delete(l.held, key)
		return nil
	}
	return unlock, true, nil
}

var _ Locker = (*InMemoryLocker)(nil)

package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotHeld is returned when releasing a lock whose lease has lapsed or
// been taken over by another holder
var ErrLockNotHeld = errors.New("lock not held")

// Unlock releases an acquired lock
type Unlock func(ctx context.Context) error

// Locker takes short-lived named locks with a TTL. TryLock never blocks: it
// reports acquired=false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock Unlock, acquired bool, err error)
}

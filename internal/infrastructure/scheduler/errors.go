package scheduler

import "errors"

var (
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	// ErrSweepInProgress means a sweep already holds the in-process guard or
	// the distributed lock
	ErrSweepInProgress = errors.New("expiry sweep already in progress")
	ErrInvalidConfig   = errors.New("invalid scheduler configuration")
	ErrSweepPanicked   = errors.New("expiry sweep panicked")
)

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Sweeper expires every batch whose expiry date has passed and reports how
// many batches changed status
type Sweeper interface {
	UpdateBatchStatuses(ctx context.Context) (int64, error)
}

// ExpirySchedulerConfig holds configuration for the expiry scheduler
type ExpirySchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// CheckInterval is the time between scheduled sweeps
	CheckInterval time.Duration

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration

	// InitialDelay postpones the first sweep after Start
	InitialDelay time.Duration

	// LockKey and LockTTL configure the optional cross-process lock
	LockKey string
	LockTTL time.Duration
}

// DefaultExpirySchedulerConfig returns default configuration
func DefaultExpirySchedulerConfig() ExpirySchedulerConfig {
	return ExpirySchedulerConfig{
		Enabled:       true,
		CheckInterval: time.Hour,
		RunTimeout:    5 * time.Minute,
		LockKey:       "expiry-sweep",
		LockTTL:       10 * time.Minute,
	}
}

// Validate checks the configuration
func (c ExpirySchedulerConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("%w: initial delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// SweepStats summarizes the sweeps run since the scheduler was created
type SweepStats struct {
	Runs             int64         `json:"runs"`
	Transitions      int64         `json:"transitions"`
	Failures         int64         `json:"failures"`
	Skipped          int64         `json:"skipped"`
	LastRunAt        time.Time     `json:"last_run_at,omitempty"`
	LastDuration     time.Duration `json:"last_duration"`
	LastTransitioned int64         `json:"last_transitioned"`
	LastError        string        `json:"last_error,omitempty"`
}

// ExpiryScheduler runs the batch expiry sweep on a fixed interval. Runs never
// overlap: a tick or trigger that finds a sweep in flight is skipped.
type ExpiryScheduler struct {
	sweeper   Sweeper
	locker    cache.Locker
	logger    *zap.Logger
	config    ExpirySchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  atomic.Bool

	statsMu sync.Mutex
	stats   SweepStats
}

// NewExpiryScheduler creates a new expiry scheduler. locker may be nil, in
// which case only in-process single-flight applies.
func NewExpiryScheduler(sweeper Sweeper, locker cache.Locker, logger *zap.Logger, config ExpirySchedulerConfig) *ExpiryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LockKey == "" {
		config.LockKey = DefaultExpirySchedulerConfig().LockKey
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * config.RunTimeout
	}
	return &ExpiryScheduler{
		sweeper: sweeper,
		locker:  locker,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweep loop
func (s *ExpiryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Expiry scheduler is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("Expiry scheduler started",
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("run_timeout", s.config.RunTimeout),
		zap.Duration("initial_delay", s.config.InitialDelay),
		zap.Bool("distributed_lock", s.locker != nil),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
func (s *ExpiryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Expiry scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ExpiryScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	initial := time.NewTimer(s.config.InitialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return
	case <-initial.C:
		_, _ = s.execute(ctx, "startup")
	}

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Expiry sweep loop stopping")
			return
		case <-ticker.C:
			_, _ = s.execute(ctx, "tick")
		}
	}
}

// TriggerNow runs a sweep immediately and returns the number of batches it expired
func (s *ExpiryScheduler) TriggerNow(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return 0, ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Info("Triggering immediate expiry sweep")
	return s.execute(ctx, "manual")
}

// execute runs one sweep unless another is in flight
func (s *ExpiryScheduler) execute(ctx context.Context, trigger string) (int64, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.recordSkip(trigger, "in_process")
		return 0, ErrSweepInProgress
	}
	defer s.inFlight.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()
	runCtx, span := telemetry.Start(runCtx, "expiry", "sweep", telemetry.AttrTrigger.String(trigger))
	defer span.End()

	if s.locker != nil {
		unlock, acquired, err := s.locker.TryLock(runCtx, s.config.LockKey, s.config.LockTTL)
		if err != nil {
			telemetry.Fail(span, err)
			s.recordFailure(trigger, 0, err)
			return 0, err
		}
		if !acquired {
			s.recordSkip(trigger, "lock_held")
			return 0, ErrSweepInProgress
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, cache.ErrLockNotHeld) {
				s.logger.Warn("Failed to release expiry sweep lock", zap.Error(err))
			}
		}()
	}

	s.logger.Debug("Starting expiry sweep", zap.String("trigger", trigger))
	startTime := time.Now()
	count, err := s.sweep(runCtx)
	duration := time.Since(startTime)
	if err != nil {
		telemetry.Fail(span, err)
		s.recordFailure(trigger, duration, err)
		return 0, err
	}
	span.SetAttributes(telemetry.AttrTransitions.Int64(count))

	s.statsMu.Lock()
	s.stats.Runs++
	s.stats.Transitions += count
	s.stats.LastRunAt = startTime
	s.stats.LastDuration = duration
	s.stats.LastTransitioned = count
	s.stats.LastError = ""
	s.statsMu.Unlock()

	s.logger.Info("Expiry sweep completed",
		zap.String("trigger", trigger),
		zap.Duration("duration", duration),
		zap.Int64("expired_batches", count),
	)
	return count, nil
}

// sweep calls the sweeper, turning a panic into ErrSweepPanicked
func (s *ExpiryScheduler) sweep(ctx context.Context) (count int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Expiry sweeper panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			count, err = 0, fmt.Errorf("%w: %v", ErrSweepPanicked, r)
		}
	}()
	return s.sweeper.UpdateBatchStatuses(ctx)
}

func (s *ExpiryScheduler) recordSkip(trigger, reason string) {
	s.statsMu.Lock()
	s.stats.Skipped++
	s.statsMu.Unlock()
	s.logger.Info("Expiry sweep skipped",
		zap.String("trigger", trigger),
		zap.String("reason", reason),
	)
}

func (s *ExpiryScheduler) recordFailure(trigger string, duration time.Duration, err error) {
	s.statsMu.Lock()
	s.stats.Runs++
	s.stats.Failures++
	s.stats.LastRunAt = time.Now()
	s.stats.LastDuration = duration
	s.stats.LastTransitioned = 0
	s.stats.LastError = err.Error()
	s.statsMu.Unlock()
	s.logger.Error("Expiry sweep failed",
		zap.String("trigger", trigger),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
}

// Stats returns a snapshot of the sweep statistics
func (s *ExpiryScheduler) Stats() SweepStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// IsRunning returns whether the scheduler is running
func (s *ExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"camrelay/internal/core/services"
	"camrelay/pkg/config"
	"camrelay/pkg/distributed"

	"go.uber.org/zap"
)

// Runner executes one named sweep. *services.ReconcilerService satisfies it.
type Runner interface {
	Run(ctx context.Context, name string) (services.SweepReport, error)
}

// Locker hands out a lease per sweep so that only one process runs a given
// sweep at a time. *distributed.LockManager satisfies it.
type Locker interface {
	NewLock(name string, ttl time.Duration) *distributed.Lock
}

// Scheduler runs every enabled reconciler sweep on its own interval.
type Scheduler struct {
	runner Runner
	sweeps map[string]config.SweepConfig
	locks  Locker
	logger *zap.SugaredLogger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. locks may be nil when a single process
// owns the store.
func NewScheduler(runner Runner, sweeps map[string]config.SweepConfig, locks Locker, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		sweeps:   sweeps,
		locks:    locks,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches one loop per enabled sweep and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for name, sweep := range s.sweeps {
		if !sweep.Enabled || sweep.Interval <= 0 {
			s.logger.Infow("sweep disabled", "sweep", name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, name, sweep.Interval)
	}
}

// Stop stops every loop and waits for in-flight sweeps to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once at startup so a restart does not leave a full interval of debt.
	s.RunOnce(ctx, name, interval)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, name, interval)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce runs a sweep if its lease can be taken. The lease outlives one
// interval at most, so a crashed holder blocks the next run only.
func (s *Scheduler) RunOnce(ctx context.Context, name string, interval time.Duration) {
	if s.locks != nil {
		lock := s.locks.NewLock("sweep:"+name, interval)
		acquired, err := lock.TryLock(ctx)
		if err != nil {
			s.logger.Warnw("failed to acquire sweep lock", "sweep", name, "error", err)
			return
		}
		if !acquired {
			s.logger.Debugw("sweep already running elsewhere", "sweep", name)
			return
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				s.logger.Warnw("failed to release sweep lock", "sweep", name, "error", err)
			}
		}()
	}

	report, err := s.runner.Run(ctx, name)
	if err != nil {
		s.logger.Errorw("sweep failed", "sweep", name, "error", err)
		return
	}
	s.logger.Infow("sweep completed",
		"sweep", name,
		"matched", report.Matched,
		"affected", report.Affected,
		"failed_chunks", report.FailedChunks,
		"duration", report.Duration,
	)
}

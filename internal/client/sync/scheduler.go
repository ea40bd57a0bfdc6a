package sync

import (
	"context"
	"sync"
	"time"

	"pocketsync/internal/logging"
)

// Syncer is the surface the Scheduler drives. *Driver satisfies it.
type Syncer interface {
	CheckAndSync(ctx context.Context) error
}

// DefaultInterval is the reconciliation period while the agent is active.
const DefaultInterval = 5 * time.Minute

// Scheduler owns the background reconciliation trigger: an eager pass right
// after arming, then a fixed-interval ticker. It is a lifecycle-scoped task
// with a single Stop handle, so no timer outlives its owner.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(s Syncer, interval time.Duration, logger logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		syncer:   s,
		interval: interval,
		logger:   logger.With("module", "scheduler"),
	}
}

// Start arms the periodic trigger. Calling Start while running is a no-op,
// so process-wide registration stays idempotent. Pass failures are logged
// and swallowed; a background pass must never take the process down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.syncer.CheckAndSync(ctx); err != nil {
		s.logger.Warn(ctx, "background sync failed", "error", err)
	}
}

// Stop cancels the trigger and waits for the background goroutine to exit.
// Safe to call multiple times and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the trigger is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Syncer is anything that can reconcile card sources.
type Syncer interface {
	RunSync(ctx context.Context) error
}

// Scheduler runs background sync on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	syncer    Syncer
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a scheduler. An interval of zero or less disables the job.
func New(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		syncer:    syncer,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sync job and returns immediately. The first run happens
// one interval from now; ctx is handed to every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("background sync disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.runSync, ctx)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("background sync scheduled", "interval", s.interval)
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.syncer.RunSync(ctx); err != nil {
		s.logger.Warn("background sync finished with errors", "error", err, "took", time.Since(start))
		return
	}
	s.logger.Info("background sync finished", "took", time.Since(start))
}

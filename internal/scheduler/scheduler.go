// Package scheduler runs periodic backend maintenance.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultInterval is how often maintenance runs.
const DefaultInterval = time.Hour

// Purger deletes practice sessions that never recorded an answer.
type Purger interface {
	PurgeEmptySessions(cutoff time.Time) (int64, error)
}

// Scheduler purges abandoned empty sessions on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    Purger
	ttl       time.Duration
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// New creates a scheduler that removes empty sessions older than ttl.
// A non-positive interval uses DefaultInterval.
func New(purger Purger, ttl, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		ttl:       ttl,
		interval:  interval,
		now:       time.Now,
		log:       slog.Default().With("component", "scheduler"),
	}
}

// Start schedules the purge job and runs the scheduler in the background.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if s.ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", s.ttl)
	}
	if _, err := s.scheduler.Every(s.interval).Do(s.purgeEmpty); err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("maintenance scheduled", "interval", s.interval, "session_ttl", s.ttl)
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunOnce runs the purge job synchronously.
func (s *Scheduler) RunOnce() (int64, error) {
	return s.purger.PurgeEmptySessions(s.now().Add(-s.ttl))
}

func (s *Scheduler) purgeEmpty() {
	n, err := s.RunOnce()
	if err != nil {
		s.log.Error("purge empty sessions failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("purged empty sessions", "count", n)
	}
}

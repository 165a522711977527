package scheduler

import (
	"context"
	"fmt"
	"time"

	"document-portal/internal/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler runs background maintenance jobs such as session cleanup.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// New creates a scheduler whose jobs never overlap with themselves.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop cancels the context handed to running jobs, then stops the scheduler.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

// Every runs job at a fixed interval, starting right away. Job errors are
// logged, not returned.
func (s *Scheduler) Every(tag string, interval time.Duration, job func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", tag, interval)
	}
	_, err := s.scheduler.Every(interval).Tag(tag).Do(func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
			return
		}
		logger.Debug("Scheduled job finished", "job", tag, "duration_ms", time.Since(start).Milliseconds())
	})
	return err
}

// Remove unschedules the job with tag.
func (s *Scheduler) Remove(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Tags lists the tags of all scheduled jobs.
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}

package scheduler

import (
	"time"

	"docqa-platform/internal/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler runs tagged background jobs at fixed intervals.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// New creates a scheduler whose jobs first fire one interval after Start.
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.WaitForScheduleAll()

	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleInterval schedules a job to run at regular intervals.
// A job error is logged; the job stays scheduled.
func (s *Scheduler) ScheduleInterval(tag string, interval time.Duration, job func() error) error {
	_, err := s.scheduler.Every(interval).Tag(tag).Do(func() {
		if err := job(); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
		}
	})
	return err
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns the tags of all scheduled jobs.
func (s *Scheduler) Jobs() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}

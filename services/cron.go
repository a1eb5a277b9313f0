package services

import (
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/internal/scheduler"
	"docqa-platform/internal/telemetry"
)

const sessionCleanupJob = "session-cleanup"

// SessionJanitor periodically removes idle conversation sessions.
type SessionJanitor struct {
	sessions  *SessionManager
	scheduler *scheduler.Scheduler
	interval  time.Duration
	metrics   *telemetry.Metrics
}

func NewSessionJanitor(sessions *SessionManager, interval time.Duration, metrics *telemetry.Metrics) *SessionJanitor {
	return &SessionJanitor{
		sessions:  sessions,
		scheduler: scheduler.New(),
		interval:  interval,
		metrics:   metrics,
	}
}

// Start schedules the sweep; the first run happens one interval from now.
func (j *SessionJanitor) Start() error {
	if err := j.scheduler.ScheduleInterval(sessionCleanupJob, j.interval, j.Sweep); err != nil {
		return err
	}
	j.scheduler.Start()
	logger.Info("Session cleanup scheduled", "interval", j.interval.String())
	return nil
}

// Sweep runs one cleanup pass.
func (j *SessionJanitor) Sweep() error {
	removed := j.sessions.CleanupExpired()
	j.metrics.RecordSessionsExpired(removed)
	return nil
}

func (j *SessionJanitor) Stop() {
	j.scheduler.Stop()
	logger.Info("Session cleanup stopped")
}

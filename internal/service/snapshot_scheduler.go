package service

import (
	"context"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// DefaultSnapshotSchedule refreshes snapshots every night at 02:30.
const DefaultSnapshotSchedule = "0 30 2 * * *"

// snapshotRunTimeout bounds one refresh of all users.
const snapshotRunTimeout = 30 * time.Minute

// SnapshotScheduler refreshes the performance snapshots of every user on a cron schedule.
type SnapshotScheduler struct {
	service *SnapshotService
	cron    *cron.Cron
	logger  *log.Logger
}

// NewSnapshotScheduler creates a new scheduler. Schedules use six fields, seconds first.
func NewSnapshotScheduler(service *SnapshotService, logger *log.Logger) *SnapshotScheduler {
	return &SnapshotScheduler{
		service: service,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start registers the refresh job and starts the scheduler.
// An empty schedule uses DefaultSnapshotSchedule.
func (s *SnapshotScheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSnapshotSchedule
	}

	if _, err := s.cron.AddFunc(schedule, s.runRefresh); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("Performance snapshot scheduler started")
	return nil
}

// AddJob runs fn on schedule next to the snapshot refresh.
// It may be called before or after Start.
func (s *SnapshotScheduler) AddJob(name, schedule string, fn func()) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug().Str("job", name).Msg("Running scheduled job")
		fn()
	})
	return err
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *SnapshotScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Performance snapshot scheduler stopped")
}

// RunNow triggers an immediate refresh in the background.
func (s *SnapshotScheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate snapshot refresh")
	go s.runRefresh()
}

func (s *SnapshotScheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotRunTimeout)
	defer cancel()

	started := time.Now()
	s.logger.Info().Msg("Starting scheduled snapshot refresh")

	if err := s.service.RefreshAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled snapshot refresh failed")
		return
	}

	s.logger.Info().Dur("duration", time.Since(started)).Msg("Scheduled snapshot refresh completed")
}

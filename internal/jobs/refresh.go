// Package jobs runs the scheduled background work of the service.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single refresh run
const DefaultTimeout = 2 * time.Minute

// Refresher refetches every category from the backend
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// RefreshScheduler refreshes the account trees on a cron schedule
type RefreshScheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *logrus.Logger
	timeout   time.Duration
}

// NewRefreshScheduler parses schedule (standard five-field cron syntax or a
// descriptor such as "@every 15m") and registers the refresh job.
func NewRefreshScheduler(schedule string, refresher Refresher, logger *logrus.Logger) (*RefreshScheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &RefreshScheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		refresher: refresher,
		logger:    logger,
		timeout:   DefaultTimeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("unable to schedule refresh %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.logger.WithField("entries", len(s.cron.Entries())).Info("refresh scheduler started")
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("refresh scheduler stopped")
}

// Next returns the time of the next scheduled run
func (s *RefreshScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce refreshes every category now
func (s *RefreshScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.refresher.RefreshAll(ctx); err != nil {
		s.logger.WithError(err).Error("scheduled refresh failed")
		return err
	}
	s.logger.WithField("duration", time.Since(start).String()).Info("scheduled refresh completed")
	return nil
}

func (s *RefreshScheduler) run() {
	_ = s.RunOnce(context.Background())
}

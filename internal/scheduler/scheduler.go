package scheduler

import (
	"context"
	"fmt"
	"time"

	"TwsePulse/internal/usecase"
	applogger "TwsePulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic analytics jobs.
type Scheduler struct {
	cron    *cron.Cron
	overlap *usecase.OverlapService
	logger  *applogger.Logger
	timeout time.Duration
}

// New creates a Scheduler in the exchange's time zone.
func New(loc *time.Location, overlap *usecase.OverlapService, l *applogger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		overlap: overlap,
		logger:  l,
		timeout: 5 * time.Minute,
	}
}

// Register registers the overlap broadcast on the given cron expression
// (standard 5-field spec, e.g. "0 9 7,14 * *" for 09:00 on the 7th and
// 14th of each month).
func (s *Scheduler) Register(overlapCron string) error {
	if _, err := s.cron.AddFunc(overlapCron, s.overlapBroadcast); err != nil {
		return fmt.Errorf("register overlap broadcast: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.logger != nil {
		s.logger.Info("scheduler started")
	}
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}

// RunOverlapNow triggers the broadcast immediately (manual trigger).
func (s *Scheduler) RunOverlapNow() {
	s.overlapBroadcast()
}

func (s *Scheduler) overlapBroadcast() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.overlap.Broadcast(ctx); err != nil {
		if s.logger != nil {
			s.logger.Error("overlap broadcast failed", applogger.Error(err))
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("overlap broadcast published")
	}
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DailyResetter clears the per-day taken flags on the record store.
type DailyResetter interface {
	ResetDaily(ctx context.Context) error
}

// ResetScheduler runs the daily taken-flags reset on a cron schedule,
// local midnight by default.
type ResetScheduler struct {
	cron     *cron.Cron
	resetter DailyResetter
	schedule string
	logger   *zap.Logger
}

// New creates a scheduler for the given cron spec (standard 5-field syntax).
func New(schedule string, resetter DailyResetter, logger *zap.Logger) (*ResetScheduler, error) {
	s := &ResetScheduler{
		cron:     cron.New(),
		resetter: resetter,
		schedule: schedule,
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins running the schedule in its own goroutine.
func (s *ResetScheduler) Start() {
	s.cron.Start()
	s.logger.Info("daily reset scheduled", zap.String("schedule", s.schedule))
}

// Stop stops the schedule. The returned context is done once any in-flight
// reset has finished.
func (s *ResetScheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *ResetScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.resetter.ResetDaily(ctx); err != nil {
		s.logger.Error("daily reset failed", zap.Error(err))
	}
}

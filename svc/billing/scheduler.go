package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slotbook/billing/pkg/logger"
)

// StartSweeper runs the sweeper on cfg.SweepSchedule until ctx is done.
// Overlapping runs are skipped. The returned channel closes once the
// scheduler has stopped and any running sweep has finished.
func (s *Service) StartSweeper(ctx context.Context) (<-chan struct{}, error) {
	log := s.log.With(logger.Component("sweeper_cron"))
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(s.cfg.SweepSchedule, func() {
		changed, err := s.sweeper.Run(ctx)
		if err != nil {
			log.ErrorContext(ctx, "sweep failed", slog.Int("changed", changed), logger.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}

	c.Start()
	log.Info("sweeper scheduled", slog.String("schedule", s.cfg.SweepSchedule))

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return done, nil
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, logger.Error(err))...)
}

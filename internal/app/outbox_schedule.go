package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"mobile-home-delivery/internal/config"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/notify"
)

// cronParser accepts 5-field expressions and descriptors such as "@every 10s".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type outboxRunner interface {
	RunOnce(ctx context.Context) (notify.RunStats, error)
}

// outboxSchedule drains the notification outbox on a cron schedule.
// Overlapping runs are skipped.
type outboxSchedule struct {
	spec   string
	runner outboxRunner
	logger logx.Logger
}

func newOutboxSchedule(cfg *config.Config, d *notify.Dispatcher, logger logx.Logger) (*outboxSchedule, error) {
	return buildOutboxSchedule(cfg.Outbox.Schedule, d, logger)
}

func buildOutboxSchedule(spec string, runner outboxRunner, logger logx.Logger) (*outboxSchedule, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid outbox schedule %q: %w", spec, err)
	}
	return &outboxSchedule{spec: spec, runner: runner, logger: logger}, nil
}

// Run blocks until ctx is done, then waits for a running pass to finish.
func (s *outboxSchedule) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule outbox: %w", err)
	}

	s.logger.Info("outbox schedule started", logx.String("schedule", s.spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("outbox schedule stopped")
	return ctx.Err()
}

func (s *outboxSchedule) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("outbox run failed",
			logx.String("event", "outbox_run_failed"),
			logx.Err(err),
		)
	}
}

// cronLogger adapts logx.Logger to cron.Logger.
type cronLogger struct{ l logx.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	fields := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

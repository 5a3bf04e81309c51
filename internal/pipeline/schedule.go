package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Run executes a cycle immediately and then on every tick of schedule (a
// standard five-field cron expression) until ctx is cancelled. A tick that
// arrives while a cycle is still running is skipped.
func (p *Pipeline) Run(ctx context.Context, schedule string) error {
	logger := cronLogger{p.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	p.logger.Info("pipeline started", "schedule", schedule)
	p.RunOnce(ctx)

	c.Start()
	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

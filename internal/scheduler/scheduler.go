// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"sunnyside/internal/domain"
)

// New returns a stopped cron runner in UTC with panic recovery and overlap
// protection. Call Start to begin and Stop to drain.
func New(logger *slog.Logger) *cron.Cron {
	l := cronLogger{logger: logger}
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// ReminderJob sends deadline reminders on each tick.
type ReminderJob struct {
	Service domain.ReminderService
	Logger  *slog.Logger
	Timeout time.Duration
}

// Run implements cron.Job.
func (j *ReminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()

	sent, err := j.Service.SendDeadlineReminders(ctx)
	if err != nil {
		j.Logger.ErrorContext(ctx, "deadline reminder run failed", "err", err)
		return
	}
	if sent > 0 {
		j.Logger.InfoContext(ctx, "deadline reminder run finished", "sent", sent)
	}
}

// ScheduleReminders registers job under schedule.
func ScheduleReminders(c *cron.Cron, schedule string, job *ReminderJob) error {
	if _, err := c.AddJob(schedule, job); err != nil {
		return fmt.Errorf("schedule reminders %q: %w", schedule, err)
	}
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

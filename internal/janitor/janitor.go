// Package janitor runs periodic maintenance on a cron schedule: expired
// drafts are purged and approved confessions that never reached the channel
// are published again.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"confessional/internal/models"
	"confessional/internal/observability"

	"github.com/adhocore/gronx"
)

// DefaultCron runs every five minutes.
const DefaultCron = "*/5 * * * *"

// retryDelay is how long the scheduler waits when the next tick cannot be computed.
const retryDelay = 30 * time.Second

// Job is one maintenance task. Run reports how many items it handled.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// DraftPurger removes expired drafts.
type DraftPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Republisher retries publishing approved confessions without a ref.
type Republisher interface {
	RepublishPending(ctx context.Context) (int, error)
}

// Jobs returns the standard maintenance jobs in run order.
func Jobs(drafts DraftPurger, moderation Republisher) []Job {
	return []Job{
		{Name: "purge_drafts", Run: func(ctx context.Context) (int, error) {
			n, err := drafts.PurgeExpired(ctx)
			return int(n), err
		}},
		{Name: "republish", Run: moderation.RepublishPending},
	}
}

// Janitor schedules Jobs with a cron expression.
type Janitor struct {
	cron string
	jobs []Job
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool
}

// New validates the cron expression. An empty one selects DefaultCron.
func New(cronExpr string, jobs ...Job) (*Janitor, error) {
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("janitor: invalid cron expression %q", cronExpr)
	}
	return &Janitor{
		cron: cronExpr,
		jobs: jobs,
		now:  func() time.Time { return time.Now().UTC() },
		wait: sleepCtx,
	}, nil
}

// NextRun is the first tick strictly after t.
func (j *Janitor) NextRun(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(j.cron, t.UTC(), false)
}

// RunOnce runs every job in order. A failing job does not stop the others;
// the first error is returned.
func (j *Janitor) RunOnce(ctx context.Context) error {
	var first error
	for _, job := range j.jobs {
		n, err := job.Run(ctx)
		observability.JanitorRuns.WithLabelValues(job.Name, observability.ResultLabel(models.ErrorCode(err))).Inc()
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "janitor job failed",
				slog.String("job", job.Name),
				slog.String("error", err.Error()))
			if first == nil {
				first = fmt.Errorf("%s: %w", job.Name, err)
			}
			continue
		}
		if n > 0 {
			observability.GlobalLogger.InfoContext(ctx, "janitor job finished",
				slog.String("job", job.Name),
				slog.Int("items", n))
		}
	}
	return first
}

// Run blocks until ctx is cancelled, running the jobs on every tick.
func (j *Janitor) Run(ctx context.Context) error {
	observability.GlobalLogger.InfoContext(ctx, "janitor started", slog.String("cron", j.cron))
	for {
		next, err := j.NextRun(j.now())
		if err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "janitor next tick failed",
				slog.String("cron", j.cron),
				slog.String("error", err.Error()))
			if !j.wait(ctx, retryDelay) {
				return ctx.Err()
			}
			continue
		}
		if !j.wait(ctx, next.Sub(j.now())) {
			observability.GlobalLogger.InfoContext(ctx, "janitor stopping")
			return ctx.Err()
		}
		_ = j.RunOnce(ctx)
	}
}

// sleepCtx reports false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

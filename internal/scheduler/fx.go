package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/silver/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(runPeriodically),
)

// runPeriodically registers the billing run on the cron schedule from
// config. The spec is read once at startup; hot reload covers batch
// size and lock TTL, not the schedule itself.
func runPeriodically(lc fx.Lifecycle, log *zap.Logger, cfg *config.BillingConfigHolder, sched *Scheduler) error {
	c := cron.New()
	_, err := c.AddFunc(cfg.Get().CronSpec, func() {
		if _, err := sched.RunOnce(context.Background()); err != nil {
			log.Named("scheduler").Error("scheduler pass aborted", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
	return nil
}

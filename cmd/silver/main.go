package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/silver/internal/billing"
	"github.com/smallbiznis/silver/internal/billinglog"
	"github.com/smallbiznis/silver/internal/clock"
	"github.com/smallbiznis/silver/internal/config"
	"github.com/smallbiznis/silver/internal/customer"
	"github.com/smallbiznis/silver/internal/document"
	"github.com/smallbiznis/silver/internal/logger"
	"github.com/smallbiznis/silver/internal/migration"
	"github.com/smallbiznis/silver/internal/observability/metrics"
	"github.com/smallbiznis/silver/internal/scheduler"
	"github.com/smallbiznis/silver/internal/subscription"
	"github.com/smallbiznis/silver/internal/usage"
	"github.com/smallbiznis/silver/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		customer.Module,
		subscription.Module,
		usage.Module,
		billinglog.Module,
		document.Module,
		billing.Module,
		scheduler.Module,

		fx.Invoke(ServeMetrics),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// ServeMetrics exposes the prometheus registry over HTTP for scraping.
func ServeMetrics(lc fx.Lifecycle, log *zap.Logger, cfg config.Config, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/slotbook/billing/pkg/alert"
	"github.com/slotbook/billing/pkg/config"
	"github.com/slotbook/billing/pkg/httpserver"
	"github.com/slotbook/billing/pkg/idempotency"
	"github.com/slotbook/billing/pkg/logger"
	"github.com/slotbook/billing/pkg/pg"
	"github.com/slotbook/billing/pkg/redis"
	"github.com/slotbook/billing/pkg/requestid"
	"github.com/slotbook/billing/pkg/subscription"
	"github.com/slotbook/billing/pkg/subscription/pgstore"
	"github.com/slotbook/billing/svc/billing"
)

type appConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"billingd"`

	HTTP     httpserver.Config
	Postgres pg.Config
	Redis    redis.Config
	Billing  billing.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("billingd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	escalator, err := alert.New(cfg.Billing.Alert, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := billing.New(cfg.Billing, billing.Deps{
		Store:     pgstore.New(pool),
		Ledger:    idempotency.NewRedisLedger(rdb, cfg.Billing.LedgerPrefix),
		Escalator: escalator,
		Logger:    log,
		Metrics:   subscription.NewMetrics(registry),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweeperDone, err := svc.StartSweeper(ctx)
	if err != nil {
		return err
	}

	handler := svc.Handler(registry,
		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)},
	)
	serveErr := httpserver.New(cfg.HTTP, log).Run(ctx, handler)

	cancel()
	<-sweeperDone
	if serveErr != nil {
		return serveErr
	}
	log.Info("billingd stopped")
	return nil
}

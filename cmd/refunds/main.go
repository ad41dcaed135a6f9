package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-rental-reservations/internal/app"
	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/config"
	kafkax "github.com/ariefcatur/go-rental-reservations/internal/kafka"
	"github.com/ariefcatur/go-rental-reservations/internal/logging"
	"github.com/ariefcatur/go-rental-reservations/internal/metrics"
	"github.com/ariefcatur/go-rental-reservations/internal/opstasks"
	"github.com/ariefcatur/go-rental-reservations/internal/payments"
	"github.com/ariefcatur/go-rental-reservations/internal/redisx"
	"github.com/ariefcatur/go-rental-reservations/internal/refunds"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func main() {
	_ = godotenv.Load()

	cfg, cfgErr := config.Load()
	service := cfg.ServiceName + "-refunds"
	logger := logging.Setup(service, cfg.Env, cfg.LogFile)
	if cfgErr == nil {
		cfgErr = cfg.RequireSharedStore("refunds worker")
	}
	if cfgErr != nil {
		logger.Error("invalid configuration", slog.String("error", cfgErr.Error()))
		os.Exit(1)
	}
	if err := run(cfg, service, logger); err != nil {
		logger.Error("refunds worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, service string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog, err := opstasks.LoadCatalog(cfg.ServicePlansPath)
	if err != nil {
		return err
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	mt := metrics.Default()
	clk := clock.NewSystem()
	cascade := opstasks.New(store, clk, opstasks.WithLogger(logger), opstasks.WithMetrics(mt))
	machine := booking.NewMachine(store, clk, payments.NewRegistry(payments.NewManual()), catalog, cascade,
		booking.WithLogger(logger),
		booking.WithMetrics(mt),
	)
	svc := refunds.NewService(machine, redisx.NewDedup(rdb, "refunds"), logger,
		refunds.WithStatusCache(redisx.NewStatusCache(rdb)),
	)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.RefundGroup, reservations.TopicBookingCancelled, cfg.RefundWorkers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("refunds consumer started",
			slog.String("group", cfg.RefundGroup),
			slog.String("topic", reservations.TopicBookingCancelled),
			slog.Int("workers", cfg.RefundWorkers),
		)
		return cons.Start(gctx, svc.HandleBookingCancelled)
	})
	g.Go(func() error {
		return svc.Reconcile(gctx, cfg.RefundReconcileInterval, cfg.RefundReconcileBatch)
	})
	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-rental-reservations/internal/app"
	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/clock"
	"github.com/ariefcatur/go-rental-reservations/internal/config"
	"github.com/ariefcatur/go-rental-reservations/internal/holds"
	"github.com/ariefcatur/go-rental-reservations/internal/httpx"
	kafkax "github.com/ariefcatur/go-rental-reservations/internal/kafka"
	"github.com/ariefcatur/go-rental-reservations/internal/ledger"
	"github.com/ariefcatur/go-rental-reservations/internal/logging"
	"github.com/ariefcatur/go-rental-reservations/internal/metrics"
	"github.com/ariefcatur/go-rental-reservations/internal/opstasks"
	"github.com/ariefcatur/go-rental-reservations/internal/payments"
	"github.com/ariefcatur/go-rental-reservations/internal/redisx"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

func main() {
	_ = godotenv.Load()

	cfg, cfgErr := config.Load()
	logger := logging.Setup(cfg.ServiceName, cfg.Env, cfg.LogFile)
	if cfgErr != nil {
		logger.Error("invalid configuration", slog.String("error", cfgErr.Error()))
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog, err := opstasks.LoadCatalog(cfg.ServicePlansPath)
	if err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	statusCache := redisx.NewStatusCache(rdb)

	// Kafka producers, one per topic
	pConfirmed := kafkax.NewProducer(cfg.KafkaBrokers, reservations.TopicBookingConfirmed, 1024, logger)
	pConfirmed.Start()
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, reservations.TopicBookingCancelled, 1024, logger)
	pCancelled.Start()

	dispatcher := reservations.NewDispatcher(logger,
		kafkax.NewBookingPublisher(pConfirmed, pCancelled, cfg.ServiceName),
		statusCache,
	)

	// Engine
	mt := metrics.Default()
	clk := clock.NewSystem()
	led := ledger.New(store, clk)
	cascade := opstasks.New(store, clk, opstasks.WithLogger(logger), opstasks.WithMetrics(mt))
	holdManager := holds.NewManager(store, led, clk,
		holds.WithDefaultTTL(cfg.HoldDefaultTTL),
		holds.WithMaxTTL(cfg.HoldMaxTTL),
		holds.WithLogger(logger),
		holds.WithMetrics(mt),
	)
	machine := booking.NewMachine(store, clk, payments.NewRegistry(payments.NewManual()), catalog, cascade,
		booking.WithDispatcher(dispatcher),
		booking.WithLogger(logger),
		booking.WithMetrics(mt),
	)

	// HTTP
	router := httpx.NewRouter(mt)
	h := &httpx.Handler{
		Holds:    holdManager,
		Bookings: machine,
		Tasks:    cascade,
		Ledger:   led,
		Status:   statusCache,
		Limiter:  httpx.NewRateLimiter(cfg.HoldRatePerMinute, cfg.HoldRateBurst),
		Logger:   logger,
	}
	h.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return holds.NewSweeper(holdManager, cfg.SweepInterval, cfg.SweepBatch, logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	// listeners may still be publishing; flush them before closing producers
	dispatcher.Wait()
	pConfirmed.Close()
	pCancelled.Close()
	pConfirmed.WaitClosed()
	pCancelled.WaitClosed()
	return err
}

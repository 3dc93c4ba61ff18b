package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/config"
	"github.com/ariefcatur/go-blindbox-draws/internal/events"
	"github.com/ariefcatur/go-blindbox-draws/internal/fulfillment"
	"github.com/ariefcatur/go-blindbox-draws/internal/httpx"
	kafkax "github.com/ariefcatur/go-blindbox-draws/internal/kafka"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/postgres"
	"github.com/ariefcatur/go-blindbox-draws/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(os.Stderr).Error(context.Background(), "config", logger.Error(err))
		os.Exit(1)
	}
	service := cfg.ServiceName + "-fulfillment"
	logger.Init(service)
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Named("main")

	if cfg.Backend != config.BackendPostgres {
		log.Error(context.Background(), "fulfillment needs the postgres backend", logger.String("backend", cfg.Backend))
		os.Exit(1)
	}
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Error(context.Background(), "kafka_brokers is empty")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error(ctx, "db connect", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	m := metrics.Default()
	svc := &fulfillment.Service{
		Ledger:      &redisx.LedgerCache{Next: postgres.NewOrderRepo(db), Redis: rdb, Log: logger.Named("order-cache")},
		Redis:       rdb,
		ServiceName: service,
		Log:         logger.Named("fulfillment"),
		Metrics:     m,
	}
	cons := kafkax.NewConsumer(brokers, cfg.FulfillmentGroup, events.TopicOrderStatusChanged, cfg.FulfillmentWorkers)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpx.NewRouter(logger.Named("http"), m), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "consumer started",
			logger.String("group", cfg.FulfillmentGroup),
			logger.String("topic", events.TopicOrderStatusChanged),
			logger.Int("workers", cfg.FulfillmentWorkers))
		return cons.Start(gctx, svc.HandleStatusChanged)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "fulfillment stopped", logger.Error(err))
		os.Exit(1)
	}
}

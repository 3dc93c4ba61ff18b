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
	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/draw"
	"github.com/ariefcatur/go-blindbox-draws/internal/events"
	"github.com/ariefcatur/go-blindbox-draws/internal/httpx"
	kafkax "github.com/ariefcatur/go-blindbox-draws/internal/kafka"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/memstore"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/postgres"
	"github.com/ariefcatur/go-blindbox-draws/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type backend struct {
	catalog  domain.Catalog
	guard    domain.Guard
	ledger   domain.Ledger
	balances domain.Balances
	close    func()
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(os.Stderr).Error(context.Background(), "config", logger.Error(err))
		os.Exit(1)
	}
	logger.Init(cfg.ServiceName)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "bad log level, using info", logger.Error(err))
	}
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		log.Error(ctx, "backend", logger.String("backend", cfg.Backend), logger.Error(err))
		os.Exit(1)
	}
	defer be.close()

	m := metrics.Default()
	opts := []draw.Option{
		draw.WithLogger(logger.Named("draw")),
		draw.WithMetrics(m),
		draw.WithFinishTimeout(cfg.FinishTimeout),
		draw.WithRetry(draw.RetryPolicy{
			MaxAttempts: cfg.LedgerMaxAttempts,
			BaseDelay:   cfg.LedgerBackoffBase,
			MaxDelay:    cfg.LedgerBackoffMax,
		}),
	}

	var prod *kafkax.Producer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		prod = kafkax.NewProducer(brokers, events.TopicDrawCommitted, 1024)
		prod.Start(ctx)
		opts = append(opts, draw.WithPublisher(&kafkax.DrawPublisher{Producer: prod, Service: cfg.ServiceName}))
	} else {
		log.Warn(ctx, "no kafka brokers configured, draw events are not published")
	}

	orch := draw.New(be.catalog, be.guard, be.ledger, opts...)

	router := httpx.NewRouter(logger.Named("http"), m)
	h := &httpx.Handler{
		Draws:       orch,
		Catalog:     be.catalog,
		Ledger:      be.ledger,
		Balances:    be.balances,
		Secret:      []byte(cfg.JWTSecret),
		DrawTimeout: cfg.DrawTimeout,
		Log:         logger.Named("http"),
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "http listening", logger.String("addr", cfg.HTTPAddr), logger.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if prod != nil {
			prod.Close()
			prod.WaitClosed()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "server stopped", logger.Error(err))
		os.Exit(1)
	}
}

// openBackend wires guard and ledger from the same store so an order and its
// stock and balance change always commit together.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store := memstore.New()
		seedDemo(store)
		return &backend{
			catalog:  store,
			guard:    store,
			ledger:   memstore.NewLedger(),
			balances: store,
			close:    func() {},
		}, nil

	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return nil, err
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		be := &backend{
			catalog:  postgres.NewCatalogRepo(db),
			guard:    postgres.NewGuard(db),
			ledger:   postgres.NewOrderRepo(db),
			balances: postgres.NewAccountRepo(db),
			close:    db.Close,
		}
		if cfg.RedisAddr != "" {
			rdb := redisx.New(cfg.RedisAddr)
			be.catalog = &redisx.CatalogCache{Next: be.catalog, Redis: rdb, TTL: cfg.CatalogCacheTTL}
			be.ledger = &redisx.LedgerCache{Next: be.ledger, Redis: rdb, Log: logger.Named("order-cache")}
			be.close = func() {
				_ = rdb.Close()
				db.Close()
			}
		}
		return be, nil
	}
	return nil, errors.New("unknown backend " + cfg.Backend)
}

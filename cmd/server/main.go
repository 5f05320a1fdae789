package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boxtrack/internal/cache"
	"boxtrack/internal/config"
	"boxtrack/internal/infra"
	"boxtrack/internal/repository"
	"boxtrack/internal/router"
	"boxtrack/internal/service"
	"boxtrack/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger: pretty in dev, JSON in prod
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	// Cache blobs, locks, negative probes and the outbox queue share one backend.
	var (
		rdb   *redis.Client
		kv    cache.KV
		lists worker.ListStore
	)
	switch cfg.CacheBackend {
	case "memory":
		log.Warn().Msg("CACHE_BACKEND=memory: cache and outbox do not survive restarts")
		kv = cache.NewMemoryKV()
		lists = worker.NewMemoryLists()
	default:
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		kv = cache.NewRedisKV(rdb)
		lists = worker.NewRedisLists(rdb)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := cfg.Catalog()
	productCache := cache.NewProductCache(kv)
	productRepo := repository.NewProductRepository(db)
	imageRepo := repository.NewImageRepository(db)
	deletionRepo := repository.NewDeletionRepository(db)
	secretRepo := repository.NewSecretRepository(db)

	cbCfg := infra.DefaultCBConfig()
	cbCfg.OnStateChange = func(from, to infra.CBState) {
		log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("outbox circuit breaker state change")
	}
	cb := infra.NewCircuitBreaker(cbCfg)
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(lists)

	syncEngine := worker.NewSyncEngine(worker.SyncConfig{
		Repo:       productRepo,
		Cache:      productCache,
		Catalog:    catalog,
		Interval:   cfg.SyncInterval,
		RetryDelay: cfg.SyncRetryDelay,
		NudgeDelay: cfg.SyncNudgeDelay,
		StaleAfter: cfg.SyncStaleAfter,
	})
	defer syncEngine.Stop()

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	workerHandlers := &worker.WorkerHandlers{
		RemoteWrite: worker.NewRemoteWriteWorker(worker.RemoteWriteConfig{
			Repo:        productRepo,
			Deletions:   deletionRepo,
			Cache:       productCache,
			CB:          cb,
			Lists:       lists,
			Alerter:     mailer,
			Nudger:      syncEngine,
			MaxAttempts: cfg.OutboxMaxAttempts,
			BackoffBase: time.Second,
		}),
	}
	worker.StartWorkerPool(ctx, lists, workerHandlers, cfg.WorkerPoolSize)
	syncEngine.StartPeriodic(ctx)
	worker.StartSweeper(ctx, worker.SweeperConfig{
		Cache:        productCache,
		Dispatcher:   dispatcher,
		CB:           cb,
		Stores:       catalog.Stores,
		Interval:     cfg.SweepInterval,
		PendingAfter: cfg.SweepPendingAfter,
	})

	links := infra.NewLinkTable(cfg.LinksFile)
	log.Info().Str("file", links.Path()).Int("links", links.Len()).Msg("product link table loaded")
	prober := infra.NewImageProber(cfg.ImageBaseURL, cfg.ImagesDir, kv, cfg.ProbeNegativeTTL)

	productSvc := service.NewProductService(service.ProductServiceDeps{
		Repo:      productRepo,
		Images:    imageRepo,
		Deletions: deletionRepo,
		Cache:     productCache,
		Queue:     dispatcher,
		Sync:      syncEngine,
		Prober:    prober,
		Links:     links,
		Catalog:   catalog,
	})
	authSvc := service.NewAuthService(secretRepo, cfg)

	r := router.New(cfg, router.Deps{
		DB:       db,
		Redis:    rdb,
		Products: productSvc,
		Auth:     authSvc,
		Queue:    dispatcher,
		CB:       cb,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Strs("stores", catalog.Stores).Msgf("boxtrack listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

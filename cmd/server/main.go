package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/travel-planner/internal/api"
	"github.com/neexbeast/travel-planner/internal/cache"
	"github.com/neexbeast/travel-planner/internal/config"
	"github.com/neexbeast/travel-planner/internal/country"
	"github.com/neexbeast/travel-planner/internal/metrics"
	"github.com/neexbeast/travel-planner/internal/plan"
	"github.com/neexbeast/travel-planner/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("travel planner exited with error", "err", err)
		os.Exit(1)
	}
}

// stores is what the resolver, the manager and the health check need from
// the persistence layer.
type stores interface {
	country.Store
	plan.Store
	api.Pinger
}

func run(ctx context.Context, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	countryStore, redisPinger, closeRedis, err := withRedis(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	source := country.NewRestCountriesClientWithURL(cfg.CountriesBaseURL)
	resolver := country.NewResolver(countryStore, source, cfg.FetchTimeout, log, m)
	manager := plan.NewManager(resolver, store, log, m)

	router := api.NewRouter(api.NewHandlers(manager, manager, log), cfg.APIToken, store, redisPinger,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("travel planner starting", "port", cfg.Port, "store", cfg.StoreDriver, "redis", cfg.RedisURL != "")
	return serve(ctx, srv, log)
}

// openStore selects the durable store named by STORE_DRIVER. For Postgres it
// also applies pending migrations.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), func() {}, nil
	}

	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	applied, err := storage.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("running migrations from %s: %w", cfg.MigrationsDir, err)
	}
	log.Info("migrations applied", "dir", cfg.MigrationsDir, "applied", applied)

	return &pgStore{Repository: storage.NewRepository(pool), pool: pool}, pool.Close, nil
}

// withRedis puts the Redis layer in front of the country table when REDIS_URL
// is set. The returned pinger is nil when Redis is disabled.
func withRedis(ctx context.Context, cfg config.Config, store country.Store, log *slog.Logger) (country.Store, api.Pinger, func(), error) {
	if cfg.RedisURL == "" {
		return store, nil, func() {}, nil
	}

	client, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("closing redis client", "err", err)
		}
	}
	return cache.NewCountryStore(cache.NewCache(client), store, log), redisPinger{client: client}, closeFn, nil
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutdown requested, draining connections", "timeout", shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("travel planner stopped")
	return nil
}

// pgStore adds the pool's ping to the repository for the health check.
type pgStore struct {
	*storage.Repository
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type redisPinger struct {
	client *redis.Client
}

func (r redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/echelon/internal/adapters/http/api"
	"github.com/okian/echelon/internal/adapters/http/live"
	"github.com/okian/echelon/internal/adapters/http/swagger"
	"github.com/okian/echelon/internal/adapters/repository"
	app "github.com/okian/echelon/internal/app"
	"github.com/okian/echelon/internal/config"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
	"github.com/okian/echelon/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(ctx)
	if err != nil {
		stop()
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	err = run(ctx, cfg)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// run wires every component from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeRedis, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	hub := newHub(cfg)
	defer hub.Close()

	svc := app.New(
		app.WithStore(store),
		app.WithNotifier(hub),
		app.WithLogger(log.Named("service")),
		app.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
		app.WithHistoryLimit(cfg.DefaultHistoryLimit),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if err := svc.SeedDrills(ctx, cfg.Drills); err != nil {
		return fmt.Errorf("seed drills: %w", err)
	}

	metrics.SetRefreshInterval(cfg.MetricsRefreshInterval)
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store_backend", cfg.StoreBackend),
			logger.Bool("redis_board", cfg.RedisAddr != ""),
			logger.Bool("token_auth", cfg.AuthSecret != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildStore opens the configured backend and, when redis_addr is set,
// fronts it with the sorted-set leaderboard. The returned func closes the
// redis client; the store itself is closed by the service.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	var (
		store repository.Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		store, err = repository.NewPostgresStore(ctx, cfg.DatabaseURL, repository.WithMaxConns(cfg.DatabaseMaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
	default:
		store = repository.NewMemoryStore()
	}

	if cfg.RedisAddr == "" {
		return store, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return repository.NewRedisBoard(store, rdb), func() { _ = rdb.Close() }, nil
}

// newMux registers the business API, the live leaderboard route and the
// API docs.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, hub *live.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	resolver := identity.NewResolver(
		identity.WithSecret(cfg.AuthSecret),
		identity.WithIssuer(cfg.AuthIssuer),
	)
	apiServer := api.NewServer(svc, svc,
		api.WithResolver(resolver),
		api.WithLiveHub(hub),
		api.WithLogger(logger.Get().Named("api")),
	)
	apiServer.Register(ctx, mux)
	return mux
}

// newHub builds the live leaderboard hub from cfg.
func newHub(cfg *config.Config) *live.Hub {
	return live.NewHub(
		live.WithBuffer(cfg.LivePushBuffer),
		live.WithWriteTimeout(cfg.LiveWriteTimeout),
		live.WithOriginPatterns(cfg.LiveAllowedOrigins...),
		live.WithLogger(logger.Get().Named("live")),
	)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes store totals from the service.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats pushes the
// store totals gauges as a side effect.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	_ = svc.GetStats(ctx)
}

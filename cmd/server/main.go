package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/clinicdex/adcore/internal/ads"
	"github.com/clinicdex/adcore/internal/analytics"
	"github.com/clinicdex/adcore/internal/api"
	"github.com/clinicdex/adcore/internal/config"
	"github.com/clinicdex/adcore/internal/db"
	"github.com/clinicdex/adcore/internal/events"
	"github.com/clinicdex/adcore/internal/geoip"
	"github.com/clinicdex/adcore/internal/macros"
	"github.com/clinicdex/adcore/internal/models"
	"github.com/clinicdex/adcore/internal/observability"
	"github.com/clinicdex/adcore/internal/rotation"
	"github.com/clinicdex/adcore/internal/sampling"
	"github.com/clinicdex/adcore/internal/settings"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	adDataStore := models.NewInMemoryAdDataStore()

	redisStore, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer redisStore.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer analyticsSvc.Close()

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		return fmt.Errorf("failed to load geoip db: %w", err)
	}
	defer func() { _ = geoSvc.Close() }()

	settingsProvider := settings.NewProvider(pg, cfg.SettingsCacheTTL, logger, metricsRegistry)
	go settingsProvider.WatchInvalidations(ctx, redisStore)

	recorder := events.NewRecorder(pg, analyticsSvc, redisStore, geoSvc, logger, metricsRegistry, cfg.RecordTimeout)
	defer recorder.Wait()

	rng := sampling.NewLockedSource(time.Now().UnixNano())
	srvDeps := api.NewServer(
		logger,
		cfg,
		pg,
		redisStore,
		adDataStore,
		ads.NewResolver(adDataStore, logger),
		ads.NewGate(settingsProvider, rng, metricsRegistry),
		settingsProvider,
		pg,
		recorder,
		analyticsSvc,
		macros.NewExpander(logger),
		rotation.NewScheduler(pg, logger, metricsRegistry),
		metricsRegistry,
	)
	srvDeps.Rng = rng

	if err := srvDeps.Reload(); err != nil {
		return fmt.Errorf("initial configuration load: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(srvDeps.Router(), cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("ad core running", zap.String("addr", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

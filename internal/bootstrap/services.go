package bootstrap

import (
	"context"
	"database/sql"
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
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/adapters/reaper"
	"github.com/target/mmk-bol-sync/internal/adapters/scheduler"
	"github.com/target/mmk-bol-sync/internal/bol"
	"github.com/target/mmk-bol-sync/internal/core"
	"github.com/target/mmk-bol-sync/internal/data"
	"github.com/target/mmk-bol-sync/internal/data/cryptoutil"
	httpx "github.com/target/mmk-bol-sync/internal/http"
	"github.com/target/mmk-bol-sync/internal/observability/metrics"
	"github.com/target/mmk-bol-sync/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sync        *service.SyncService
	Exports     *service.ExportService
	Coordinator *service.Coordinator
	Credentials *data.CredentialRepo
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry

	// HealthChecks probe the connections the services depend on.
	HealthChecks map[string]httpx.HealthCheck
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient *redis.Client // nil when Redis is disabled
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Credentials *data.CredentialRepo
	Jobs        *data.ExportJobRepo
	Snapshots   *data.SnapshotRepo
	Analyses    *data.AnalysisRepo
	Locker      core.RunLocker
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient *redis.Client, sealer cryptoutil.Sealer) *serviceRepositories {
	var locker core.RunLocker = data.NewPgRunLocker(db)
	if redisClient != nil {
		locker = data.NewRedisRunLocker(data.NewRedisCacheRepo(redisClient))
	}
	return &serviceRepositories{
		Credentials: data.NewCredentialRepo(db).WithSealer(sealer),
		Jobs:        data.NewExportJobRepo(db),
		Snapshots:   data.NewSnapshotRepo(db),
		Analyses:    data.NewAnalysisRepo(db),
		Locker:      locker,
	}
}

// buildSealer returns the client secret sealer for key.
//
//nolint:ireturn // the repository only needs the Sealer behavior.
func buildSealer(key string, logger *slog.Logger) (cryptoutil.Sealer, error) {
	sealer, err := cryptoutil.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("secrets sealer: %w", err)
	}
	if _, plain := sealer.(cryptoutil.PlainSealer); plain {
		logger.Warn("SECRETS_ENCRYPTION_KEY is empty; tenant secrets are stored unsealed")
	}
	return sealer, nil
}

// buildMetrics registers the service collectors plus the Go runtime ones.
func buildMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), reg
}

// buildUpstream creates the marketplace transport and the per-audience token caches.
func buildUpstream(cfg config.BolConfig, m *metrics.Metrics, logger *slog.Logger) (*bol.Client, *bol.Tokens) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	client := bol.NewClient(bol.ClientOptions{
		RetailerBaseURL:    cfg.RetailerBaseURL,
		SharedBaseURL:      cfg.SharedBaseURL,
		AdvertisingBaseURL: cfg.AdvertisingBaseURL,
		HTTPClient:         httpClient,
		RetailerRate:       rate.Limit(cfg.RetailerRate),
		RetailerBurst:      cfg.RetailerBurst,
		AdvertisingRate:    rate.Limit(cfg.AdvertisingRate),
		AdvertisingBurst:   cfg.AdvertisingBurst,
		Observer:           m,
		Logger:             logger,
	})
	tokens := bol.NewTokens(bol.TokensOptions{
		TokenURL:   cfg.TokenURL,
		HTTPClient: httpClient,
		Margin:     cfg.TokenMargin,
		Observer:   m,
	})
	return client, tokens
}

// NewServices wires the sync services from configuration and connections.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return nil, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	sealer, err := buildSealer(cfg.SecretsEncryptionKey, logger)
	if err != nil {
		return nil, err
	}
	repos := buildRepositories(deps.DB, deps.RedisClient, sealer)
	m, reg := buildMetrics()
	client, tokens := buildUpstream(cfg.Bol, m, logger)
	analyzer := service.NewContentQualityAnalyzer()

	exports, err := service.NewExportService(service.ExportServiceOptions{
		Client: client,
		Tokens: tokens,
		Repos: service.ExportRepos{
			Credentials: repos.Credentials,
			Jobs:        repos.Jobs,
			Snapshots:   repos.Snapshots,
			Analyses:    repos.Analyses,
		},
		Analyzer: analyzer,
		Config: service.ExportConfig{
			MaxAge:      cfg.Sync.ExportMaxAge,
			MaxAttempts: cfg.Sync.ExportMaxAttempts,
			BatchSize:   cfg.Sync.SweepBatchSize,
		},
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("export service: %w", err)
	}

	syncSvc, err := service.NewSyncService(service.SyncServiceOptions{
		Client: client,
		Tokens: tokens,
		Repos: service.SyncRepos{
			Credentials: repos.Credentials,
			Snapshots:   repos.Snapshots,
			Analyses:    repos.Analyses,
		},
		Analyzer: analyzer,
		Exports:  exports,
		Config: service.SyncConfig{
			PageSize:      cfg.Bol.PageSize,
			ItemDelay:     cfg.Sync.ItemDelay,
			EnrichLimit:   cfg.Sync.EnrichLimit,
			ForecastWeeks: cfg.Sync.ForecastWeeks,
		},
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("sync service: %w", err)
	}

	coordinator, err := service.NewCoordinator(service.CoordinatorOptions{
		Sync:    syncSvc,
		Exports: exports,
		Locker:  repos.Locker,
		LockTTL: cfg.Sync.LockTTL,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("run coordinator: %w", err)
	}

	return &ServiceContainer{
		Sync:        syncSvc,
		Exports:     exports,
		Coordinator: coordinator,
		Credentials: repos.Credentials,
		Metrics:     m,
		Registry:    reg,

		HealthChecks: buildHealthChecks(deps.DB, deps.RedisClient),
	}, nil
}

// buildHealthChecks probes the database and, when configured, redis.
func buildHealthChecks(db *sql.DB, redisClient *redis.Client) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newSchedulerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScheduler,
		name: "scheduler",
		start: func(ctx context.Context) error {
			runner, err := scheduler.NewRunner(scheduler.RunnerOptions{
				Trigger: deps.cfg.Services.Coordinator,
				Config:  deps.cfg.Config.Scheduler,
				Logger:  deps.logger,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  deps.cfg.Config.Reaper,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Metrics,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newSchedulerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config missing AppConfig or services")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:             serviceCtx,
		cancel:          cancel,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		shutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		logger:          logger,
		backgrounds:     result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	errCh           <-chan error
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Server:  cfg.httpServer,
			Timeout: cfg.shutdownTimeout,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}

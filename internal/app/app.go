package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veloplan/sync-service/internal/config"
	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/handler"
	"github.com/veloplan/sync-service/internal/repository"
	"github.com/veloplan/sync-service/internal/service"
	"github.com/veloplan/sync-service/internal/strava"
	"github.com/veloplan/sync-service/internal/utils"
	"github.com/veloplan/sync-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra     Infrastructure
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	scheduler *service.Scheduler
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry.Duration)

	stravaClient := strava.NewClient(cfg.Strava)
	tokenManager := service.NewTokenManager(repos.User, stravaClient, infra.Logger())
	matcher := service.NewMatcher(cfg.Sync.MatchThreshold)

	metrics, err := service.NewSyncMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync metrics: %w", err)
	}

	var notifier service.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = service.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout.Duration, infra.Logger())
	} else {
		notifier = service.NewNoopNotifier(infra.Logger())
	}

	syncService := service.NewSyncService(
		repos,
		tokenManager,
		stravaClient,
		matcher,
		notifier,
		metrics,
		cfg.Sync,
		infra.Logger(),
	)

	accountService := service.NewAccountService(
		repos.User,
		stravaClient,
		tokenManager,
		jwtManager,
		infra.Logger(),
	)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	guard := service.NewSyncGuard(infra.Redis(), cfg.Sync.RunLockTTL.Duration)
	scheduler := service.NewScheduler(loc, guard, infra.Logger())
	if err := registerJobs(scheduler, cfg.Scheduler, syncService); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	jobHandler := handler.NewJobHandler(scheduler, repos.Job)
	accountHandler := handler.NewAccountHandler(accountService, syncService)

	router := gin.Default()
	router.Use(otelgin.Middleware("sync-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, jobHandler, accountHandler, jwtManager, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:     infra,
		config:    cfg,
		router:    router,
		server:    srv,
		scheduler: scheduler,
	}, nil
}

func registerJobs(scheduler *service.Scheduler, cfg config.SchedulerConfig, syncService *service.SyncService) error {
	jobs := []struct {
		name string
		spec string
		fn   service.JobFunc
	}{
		{domain.JobTypeActivitySync, cfg.ActivitySyncSpec, syncService.RunActivitySync},
		{domain.JobTypeCleanup, cfg.CleanupSpec, syncService.RunCleanup},
		{domain.JobTypeNotifications, cfg.NotificationsSpec, syncService.RunNotifications},
	}

	for _, job := range jobs {
		if err := scheduler.Register(job.name, job.spec, job.fn); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Scheduler() *service.Scheduler {
	return a.scheduler
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	jobHandler *handler.JobHandler,
	accountHandler *handler.AccountHandler,
	jwtManager *utils.JWTManager,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.GET("/strava/callback",
				handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
				accountHandler.Callback,
			)
		}

		stravaGroup := api.Group("/strava", handler.AuthMiddleware(jwtManager))
		{
			stravaGroup.GET("/connect", accountHandler.Connect)
			stravaGroup.POST("/sync",
				handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey),
				accountHandler.SyncNow,
			)
			stravaGroup.PUT("/auto-sync", accountHandler.SetAutoSync)
			stravaGroup.GET("/status", accountHandler.SyncStatus)
			stravaGroup.GET("/activities/:id/streams", accountHandler.ActivityStreams)
		}

		admin := api.Group("/admin", handler.AuthMiddleware(jwtManager))
		{
			admin.GET("/jobs", jobHandler.ListJobs)
			admin.POST("/jobs/:name/run", jobHandler.TriggerJob)
			admin.POST("/jobs/:name/start", jobHandler.StartJob)
			admin.POST("/jobs/:name/stop", jobHandler.StopJob)
			admin.POST("/scheduler/start", jobHandler.StartScheduler)
			admin.POST("/scheduler/stop", jobHandler.StopScheduler)
			admin.GET("/jobs/runs", jobHandler.ListRuns)
			admin.GET("/jobs/runs/:id", jobHandler.GetRunDetails)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	a.scheduler.Start()
	if a.config.Scheduler.AutoStart {
		a.scheduler.StartAll()
	}

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
			zap.Bool("scheduler_armed", a.config.Scheduler.AutoStart),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libredis "evorchestrator/backend/libs/redis"
	"evorchestrator/backend/services/orchestrator/internal/cache"
	"evorchestrator/backend/services/orchestrator/internal/config"
	"evorchestrator/backend/services/orchestrator/internal/db"
	httpserver "evorchestrator/backend/services/orchestrator/internal/http"
	"evorchestrator/backend/services/orchestrator/internal/http/handlers"
	"evorchestrator/backend/services/orchestrator/internal/http/middleware"
	"evorchestrator/backend/services/orchestrator/internal/jobs"
	"evorchestrator/backend/services/orchestrator/internal/live"
	"evorchestrator/backend/services/orchestrator/internal/metrics"
	"evorchestrator/backend/services/orchestrator/internal/notify"
	"evorchestrator/backend/services/orchestrator/internal/password"
	"evorchestrator/backend/services/orchestrator/internal/repository"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

const limiterCleanupInterval = 5 * time.Minute

// App wires orchestrator dependencies.
type App struct {
	server    *httpserver.Server
	hub       *live.Hub
	scheduler *jobs.Scheduler
	limiter   *middleware.RateLimiter
	notifier  *notify.Notifier
	db        *sqlx.DB
	redis     *redis.Client
	logger    *zap.Logger
}

// New constructs application graph. ctx bounds the initial connection checks.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.NewPostgres(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(database, logger); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	var (
		redisClient       *redis.Client
		availabilityCache service.AvailabilityCache
	)
	if cfg.RedisEnabled() {
		redisClient, err = libredis.NewClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		availabilityCache = cache.NewAvailabilityStore(redisClient, cfg.AvailabilityTTL())
	} else {
		logger.Info("redis not configured, availability cache disabled")
	}

	loc := cfg.Location()

	userRepo := repository.NewUserRepository(database)
	stationRepo := repository.NewStationRepository(database)
	utilizationRepo := repository.NewUtilizationRepository(database)
	vehicleRepo := repository.NewVehicleRepository(database)
	bookingRepo := repository.NewBookingRepository(database)

	hub := live.NewHub(logger)
	notifier := newNotifier(cfg, logger)

	tokenService := service.NewTokenService(cfg.Auth.JWTSecret, cfg.JWTExpiration())
	authService := service.NewAuthService(userRepo, password.NewBcryptHasher(0), tokenService, cfg.OAuth.ClientSecret, logger)
	stationService := service.NewStationService(stationRepo, utilizationRepo, availabilityCache, hub, loc, logger)
	vehicleService := service.NewVehicleService(vehicleRepo, logger)
	bookingService := service.NewBookingService(bookingRepo, vehicleRepo, stationService, notifier, service.BookingOptions{
		Location:    loc,
		NoShowGrace: cfg.Booking.NoShowGrace,
	}, logger)
	utilizationService := service.NewUtilizationService(stationRepo, utilizationRepo, loc, logger)

	scheduler := jobs.NewScheduler(logger)
	if cfg.Jobs.Enabled {
		for _, job := range []jobs.Job{
			jobs.NoShowJob(cfg.Jobs.NoShowSchedule, bookingService),
			jobs.UtilizationJob(cfg.Jobs.UtilizationSchedule, utilizationService),
		} {
			if err := scheduler.Add(job); err != nil {
				closeQuietly(database, redisClient, logger)
				return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
			}
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandlers:     handlers.NewAuthHandlers(authService, logger),
		StationsHandlers: handlers.NewStationsHandlers(stationService, logger),
		VehiclesHandlers: handlers.NewVehiclesHandlers(vehicleService, logger),
		BookingsHandlers: handlers.NewBookingsHandlers(bookingService, logger),
		LiveHandler:      handlers.NewLiveHandler(hub, cfg.HTTP.AllowedOrigins, logger),
		HealthHandler:    handlers.NewHealthHandler(),
		MetricsHandler:   metrics.Handler(),
	}, middleware.AuthMiddleware(authService, cfg.Auth.AllowEmailHeader, logger), limiter.Handler)

	if cfg.Auth.AllowEmailHeader {
		logger.Warn("e-mail header authentication enabled; do not use in production")
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.HTTPAddress(),
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Middlewares: []func(http.Handler) http.Handler{
			middleware.Recovery(logger),
			middleware.RequestLogger(logger),
			middleware.CORS(cfg.HTTP.AllowedOrigins),
		},
	}, router, logger)

	return &App{
		server:    server,
		hub:       hub,
		scheduler: scheduler,
		limiter:   limiter,
		notifier:  notifier,
		db:        database,
		redis:     redisClient,
		logger:    logger,
	}, nil
}

// Run starts the live hub, background jobs and HTTP traffic until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	a.limiter.StartCleanup(ctx, limiterCleanupInterval)
	a.scheduler.Start()
	return a.server.Run(ctx)
}

// Close stops background work and releases connections.
func (a *App) Close() {
	a.scheduler.Stop()
	a.notifier.Wait()
	closeQuietly(a.db, a.redis, a.logger)
}

func newNotifier(cfg *config.Config, logger *zap.Logger) *notify.Notifier {
	var (
		email notify.EmailSender
		sms   notify.SMSSender
	)
	if sender := notify.NewSendGridSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName); sender != nil {
		email = sender
	}
	if sender := notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber); sender != nil {
		sms = sender
	}

	notifier := notify.NewNotifier(email, sms, logger)
	if !notifier.Enabled() {
		logger.Info("no notification channel configured")
	}
	return notifier
}

func closeQuietly(database *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if database != nil {
		if err := database.Close(); err != nil {
			logger.Warn("failed to close postgres", zap.Error(err))
		}
	}
}

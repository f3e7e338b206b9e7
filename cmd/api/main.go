package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/geo"
	"github.com/courtmate/tennis-platform/internal/matching"
	"github.com/courtmate/tennis-platform/internal/notifications"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/internal/scheduler"
	"github.com/courtmate/tennis-platform/internal/sharedbooking"
	"github.com/courtmate/tennis-platform/pkg/cache"
	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/database"
	"github.com/courtmate/tennis-platform/pkg/errors"
	"github.com/courtmate/tennis-platform/pkg/eventbus"
	"github.com/courtmate/tennis-platform/pkg/health"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/middleware"
	"github.com/courtmate/tennis-platform/pkg/ratelimit"
	redisclient "github.com/courtmate/tennis-platform/pkg/redis"
	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/courtmate/tennis-platform/pkg/swagger"
	"github.com/courtmate/tennis-platform/pkg/tracing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	serviceName = "courtmate-api"
	version     = "1.0.0"

	idempotencyTTL = 24 * time.Hour
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting courtmate api", zap.String("version", version))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	sentryConfig := errors.DefaultSentryConfig()
	sentryConfig.ServerName = serviceName
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
	}

	tracerEnabled := os.Getenv("OTEL_ENABLED") == "true"
	if tracerEnabled {
		tp, err := tracing.InitTracer(tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Enabled:        true,
		}, log)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
		}
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(&cfg.Database); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database, cfg.Timeout.DatabaseQueryTimeoutDuration())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	sqlDB := database.SQLDB(db)

	// Redis backs the geocode cache, rate limits, idempotency and the
	// nearby-player index. Without it those degrade to local behaviour.
	var (
		redisConn redisclient.ClientInterface
		limiter   *ratelimit.Limiter
		nearby    matching.NearbyIndex
	)
	redisRaw, err := redisclient.NewRedisClient(&cfg.Redis, cfg.Timeout)
	if err != nil {
		logger.Warn("Failed to connect to Redis - running with local caches only", zap.Error(err))
	} else {
		defer redisRaw.Close()
		redisConn = redisRaw
		limiter = ratelimit.NewLimiter(redisRaw.Client, cfg.RateLimit)
		nearby = geo.NewPlayerIndex(redisConn)
	}
	cacheManager := cache.NewManager(redisConn)

	// Geocoding
	geocodeBreaker := resilience.NewCircuitBreaker(
		resilience.SettingsFromConfig("opencage-geocoding", cfg.Resilience.CircuitBreaker))
	var provider geo.Provider
	if cfg.Geocoding.Enabled && cfg.Geocoding.APIKey != "" {
		provider = geo.NewOpenCageProvider(cfg.Geocoding, geocodeBreaker)
	} else {
		logger.Warn("Geocoding disabled - only cached locations will resolve")
	}
	var throttle geo.Throttle = geo.NewLocalThrottle(cfg.Geocoding.RequestsPerSecond)
	if limiter != nil {
		throttle = geo.NewDistributedThrottle(limiter, cfg.Geocoding.RequestsPerSecond)
	}
	geoCache := geo.NewTieredCache(geo.NewMemoryCache(), cacheManager, cfg.Geocoding.CacheTTL())

	// Domain services
	playerRepo := players.NewRepository(db)
	courtRepo := courts.NewRepository(db)
	geoService := geo.NewService(geoCache, provider, throttle, courtRepo)

	courtService := courts.NewService(courtRepo, playerRepo, geoService, cacheManager)
	matchService := matching.NewService(playerRepo, geoService, nearby)

	sharedRepo := sharedbooking.NewRepository(db)
	sharedService := sharedbooking.NewService(sharedRepo, playerRepo, courtService, geoService, cfg.Booking)

	notificationService := notifications.NewService(
		notifications.NewRepository(db), playerRepo, emailSender(cfg), smsSender(cfg))

	var eventBus *eventbus.Bus
	if cfg.NATS.Enabled && cfg.NATS.URL != "" {
		bus, err := eventbus.New(eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Warn("Failed to connect to NATS - booking notifications disabled", zap.Error(err))
		} else {
			eventBus = bus
			defer bus.Close()
			sharedService.SetEventBus(bus)

			eventHandler := notifications.NewEventHandler(notificationService, courtService)
			if err := eventHandler.RegisterSubscriptions(rootCtx, bus); err != nil {
				logger.Warn("Failed to subscribe to shared booking events", zap.Error(err))
			}
		}
	}

	expiryWorker := scheduler.NewWorker(sharedService, cfg.Booking.ExpirySweepInterval(), log)
	go expiryWorker.Start(rootCtx)

	// Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(common.NoRouteHandler())
	router.NoMethod(common.NoMethodHandler())

	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(&cfg.Timeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.Origins()))
	router.Use(middleware.Metrics(serviceName))
	if tracerEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))

	readiness := map[string]func() error{
		"database": health.DatabaseChecker(sqlDB, 2*time.Second),
	}
	if redisRaw != nil {
		readiness["redis"] = health.Probe("redis", func(ctx context.Context) error {
			return redisRaw.Ping(ctx).Err()
		}, 2*time.Second)
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, readiness))

	deep := health.NewDeepChecker(health.DefaultDeepCheckerConfig())
	deep.SetDatabase(sqlDB)
	if redisRaw != nil {
		deep.AddDependency("redis", false, func(ctx context.Context) error {
			return redisRaw.Ping(ctx).Err()
		})
	}
	if eventBus != nil {
		deep.AddDependency("nats", false, func(ctx context.Context) error {
			if !eventBus.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		})
	}
	deep.AddCircuitBreaker("geocoding", geocodeBreaker)
	router.GET("/health/deep", deep.GinHandler())

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	swagger.RegisterRoutes(router, "CourtMate API")

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	api.Use(middleware.RateLimit(limiter, cfg.RateLimit))

	courts.NewHandler(courtService).RegisterRoutes(api)
	matching.NewHandler(matchService).RegisterRoutes(api)
	notifications.NewHandler(notificationService).RegisterRoutes(api)

	var mutating []gin.HandlerFunc
	if redisConn != nil {
		mutating = append(mutating, middleware.Idempotency(redisConn, idempotencyTTL))
	}
	sharedbooking.NewHandler(sharedService).RegisterRoutes(api, mutating...)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	expiryWorker.Stop()
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// emailSender returns nil when notifications are disabled or SendGrid is not
// configured, which makes the service skip the email channel.
func emailSender(cfg *config.Config) notifications.EmailSender {
	if !cfg.Notifications.Enabled || cfg.Notifications.SendGridAPIKey == "" {
		return nil
	}
	breaker := resilience.NewCircuitBreaker(
		resilience.SettingsFromConfig("sendgrid-email", cfg.Resilience.CircuitBreaker))
	return notifications.NewResilientEmailSender(
		notifications.NewSendGridEmailSender(
			cfg.Notifications.SendGridAPIKey, cfg.Notifications.FromEmail, cfg.Notifications.FromName),
		breaker)
}

func smsSender(cfg *config.Config) notifications.SMSSender {
	if !cfg.Notifications.Enabled || cfg.Notifications.TwilioAccountSID == "" {
		return nil
	}
	breaker := resilience.NewCircuitBreaker(
		resilience.SettingsFromConfig("twilio-sms", cfg.Resilience.CircuitBreaker))
	return notifications.NewResilientSMSSender(
		notifications.NewTwilioSMSSender(
			cfg.Notifications.TwilioAccountSID, cfg.Notifications.TwilioAuthToken, cfg.Notifications.TwilioFromNumber),
		breaker)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	v1 "crossing-closures/closure-portal/api/v1"
	"crossing-closures/closure-portal/internal/closures"
	"crossing-closures/closure-portal/internal/config"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/mapexport"
	"crossing-closures/closure-portal/internal/metrics"
	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/notifications"
	"crossing-closures/closure-portal/internal/scheduler"
	"crossing-closures/closure-portal/internal/session"
	"crossing-closures/closure-portal/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger.Named("gateway"),
		Metrics: m,
	})

	// Session store
	var (
		store session.Store
		db    *gorm.DB
	)
	switch cfg.Session.Store {
	case "postgres":
		db, err = openDatabase(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		gormStore := session.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			logger.Fatal("Failed to migrate session table", zap.Error(err))
		}
		store = gormStore
		logger.Info("Connected to database", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
	default:
		store = session.NewMemoryStore()
	}

	manager := session.NewManager(store, client, session.Config{
		TTL:            cfg.Session.TTL,
		ResolveTimeout: cfg.Session.ResolveTimeout,
		FetchTimeout:   cfg.API.Timeout,
	}, logger.Named("session"))
	client.OnUnauthorized(manager.Invalidate)

	secret := cfg.Session.Secret
	if secret == "" {
		logger.Fatal("SESSION_SECRET is required")
	}
	codec, err := session.NewCookieCodec(secret, cfg.Session.TTL)
	if err != nil {
		logger.Fatal("Invalid session secret", zap.Error(err))
	}
	guard := middleware.NewGuard(manager, codec, middleware.GuardConfig{
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.CookieSecure,
	}, m, logger.Named("guard"))

	// AWS: notifications and the map layer link are optional
	var (
		publisher   *notifications.Publisher
		mapExporter *mapexport.Exporter
	)
	if cfg.Notifications.TopicARN != "" || cfg.Export.Bucket != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.AWS.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		publisher = notifications.NewSNSPublisher(awsCfg, cfg.Notifications.TopicARN, logger.Named("notifications"))
		if cfg.Export.Bucket != "" {
			mapExporter = mapexport.NewExporter(client, storage.NewS3Client(awsCfg), mapexport.Config{
				Bucket: cfg.Export.Bucket,
				Key:    cfg.Export.Key,
			}, m, logger.Named("mapexport"))
		}
	}
	var notifier closures.Notifier
	if publisher.Enabled() {
		notifier = publisher
	}

	limiter := middleware.NewRateLimiter(cfg.Security.LoginRatePerMinute, cfg.Security.LoginBurst, logger.Named("ratelimit"))

	// Housekeeping
	sched := scheduler.New(logger.Named("scheduler"))
	if err := sched.Add("session-sweep", cfg.Session.SweepSchedule, func(ctx context.Context) error {
		_, err := manager.Sweep(ctx)
		return err
	}); err != nil {
		logger.Fatal("Failed to schedule session sweep", zap.Error(err))
	}
	if err := sched.Add("login-limiter-cleanup", "@every 10m", func(context.Context) error {
		limiter.Cleanup(30 * time.Minute)
		return nil
	}); err != nil {
		logger.Fatal("Failed to schedule limiter cleanup", zap.Error(err))
	}
	sched.Start()

	// Router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger.Named("http")),
		middleware.Metrics(m),
		middleware.CORS(cfg.Server.AllowedOrigins),
		gin.Recovery(),
		middleware.ErrorHandler(guard, logger.Named("errors")),
	)

	deps := v1.Deps{
		API:           client,
		Sessions:      manager,
		Guard:         guard,
		LoginLimiter:  limiter,
		MapExporter:   mapExporter,
		MaxUploadSize: cfg.Security.MaxUploadSize,
		Notifier:      notifier,
		Logger:        logger,
	}
	v1.RegisterRoutes(router, v1.SetupPortalAPI(deps))

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"store":     cfg.Session.Store,
		}
		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Portal started",
		zap.String("addr", srv.Addr),
		zap.String("api", client.BaseURL()),
		zap.String("session_store", cfg.Session.Store),
		zap.Bool("notifications", publisher.Enabled()),
		zap.Bool("map_link", mapExporter != nil))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}

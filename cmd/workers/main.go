package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/config"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/mapexport"
	"crossing-closures/closure-portal/internal/metrics"
	"crossing-closures/closure-portal/internal/scheduler"
	"crossing-closures/closure-portal/pkg/storage"
)

const exportJob = "map-export"

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

	if cfg.Export.Bucket == "" || cfg.Export.Username == "" {
		logger.Fatal("EXPORT_BUCKET and EXPORT_USERNAME are required")
	}
	if err := scheduler.ValidateCronExpression(cfg.Export.Schedule); err != nil {
		logger.Fatal("Invalid EXPORT_SCHEDULE", zap.String("schedule", cfg.Export.Schedule), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          cfg.AWS.Region,
		Endpoint:        cfg.AWS.Endpoint,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	m := metrics.New()
	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger.Named("gateway"),
		Metrics: m,
	})
	exporter := mapexport.NewExporter(client, storage.NewS3Client(awsCfg), mapexport.Config{
		Bucket:   cfg.Export.Bucket,
		Key:      cfg.Export.Key,
		Username: cfg.Export.Username,
		Password: cfg.Export.Password,
	}, m, logger.Named("mapexport"))

	sched := scheduler.New(logger.Named("scheduler"))
	if err := sched.Add(exportJob, cfg.Export.Schedule, func(ctx context.Context) error {
		_, err := exporter.Run(ctx)
		return err
	}); err != nil {
		logger.Fatal("Failed to schedule map export", zap.Error(err))
	}

	// metrics only; the worker serves nothing else
	metricsSrv := &http.Server{
		Addr:              cfg.Server.GetServerAddr(),
		Handler:           m.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Map export worker starting",
		zap.String("bucket", cfg.Export.Bucket),
		zap.String("key", cfg.Export.Key),
		zap.String("schedule", cfg.Export.Schedule))

	// first export right away, then on schedule
	if err := sched.RunNow(exportJob); err != nil {
		logger.Error("Initial map export failed", zap.Error(err))
	}
	sched.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server forced to shutdown", zap.Error(err))
	}
	logger.Info("Map export worker stopped")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/database"
	"github.com/synaptica-ai/hospital-insights/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
	"github.com/synaptica-ai/hospital-insights/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-insights/pkg/serving"
	"github.com/synaptica-ai/hospital-insights/pkg/serving/predictor"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
	"github.com/synaptica-ai/hospital-insights/pkg/warehouse"
)

func main() {
	logger.Init()
	cfg, err := config.LoadFile("")
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load config")
	}
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := serving.Deps{
		ArtifactDir: cfg.ArtifactDir,
		MaxBody:     cfg.MaxRequestBody,
	}

	backend, err := warehouse.Open(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Warehouse not available, analytics routes disabled")
	} else {
		defer backend.Close()
		deps.Analytics = backend.Querier
	}

	engine := predictor.NewPredictor(cfg.ArtifactDir)
	deps.Models = engine

	offline := serving.NewOfflineFeatures(filepath.Join(cfg.ProcessedDir, features.MLDatasetFile))
	var online serving.OnlineStore
	if cfg.MaterializeOnline {
		online = storage.NewFeatureStore(database.GetRedis(cfg), cfg.FeatureOnlinePrefix, cfg.FeatureCacheTTL)
		defer database.CloseRedis()
	}
	deps.Features = serving.NewCachedLookup(online, offline)

	if cfg.RecordRuns {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		repo := serving.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log table")
		}
		deps.Recorder = repo
		defer database.ClosePostgres()
	}

	if cfg.PublishEvents {
		consumer := kafka.NewConsumer(cfg, cfg.RunTopic, cfg.KafkaGroupID+"-serving")
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, serving.RunEventHandler(engine, offline)); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("Run event consumer stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      serving.NewServer(deps).Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Serving Service stopped")
}

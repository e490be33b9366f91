package main

import (
	"context"
	"errors"

	"github.com/synaptica-ai/hospital-insights/pkg/analytics/features"
	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/database"
	"github.com/synaptica-ai/hospital-insights/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-insights/pkg/ingestion"
	"github.com/synaptica-ai/hospital-insights/pkg/ml/linear"
	"github.com/synaptica-ai/hospital-insights/pkg/normalizer"
	"github.com/synaptica-ai/hospital-insights/pkg/pipeline"
	"github.com/synaptica-ai/hospital-insights/pkg/storage"
	"github.com/synaptica-ai/hospital-insights/pkg/training"
	"github.com/synaptica-ai/hospital-insights/pkg/warehouse"
)

// wire builds only the dependencies the requested steps touch. The returned
// cleanup closes whatever was opened.
func wire(ctx context.Context, cfg *config.Config, steps []pipeline.Step) (pipeline.Deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	want := make(map[pipeline.Step]bool, len(steps))
	for _, s := range steps {
		want[s] = true
	}

	deps := pipeline.Deps{
		Processed:  storage.NewProcessedStore(cfg.ProcessedDir),
		FeatureDir: cfg.ProcessedDir,
		Features:   features.Options{Workers: cfg.AggregationWorkers},
	}

	var warningRepo *normalizer.Repository
	var jobRepo *training.Repository
	if cfg.RecordRuns {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, database.ClosePostgres)

		runRepo := pipeline.NewRepository(db)
		warningRepo = normalizer.NewRepository(db)
		jobRepo = training.NewRepository(db)
		if err := errors.Join(runRepo.AutoMigrate(), warningRepo.AutoMigrate(), jobRepo.AutoMigrate()); err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.Runs = runRepo
	}

	if want[pipeline.StepClean] {
		source, err := ingestion.NewSource(cfg.RawDataDir, cfg.RawFormat)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.Source = source
		deps.Normalizer = normalizer.NewService(
			normalizer.NewCleaner(normalizer.Options{Departments: cfg.Departments}),
			warningRepo,
		)
	}

	if want[pipeline.StepWarehouse] {
		backend, err := warehouse.Open(ctx, cfg)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, backend.Close)
		deps.Warehouse = backend.Store
	}

	if want[pipeline.StepFeatures] && cfg.MaterializeOnline {
		deps.Online = storage.NewFeatureStore(database.GetRedis(cfg), cfg.FeatureOnlinePrefix, cfg.FeatureCacheTTL)
		closers = append(closers, database.CloseRedis)
	}

	if want[pipeline.StepTrain] {
		var recorder training.JobRecorder
		if jobRepo != nil {
			recorder = jobRepo
		}
		trainer, err := training.NewService(recorder, cfg.ArtifactDir, linear.Options{})
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.Trainer = trainer
	}

	if cfg.PublishEvents {
		producer := kafka.NewProducer(cfg, cfg.RunTopic)
		closers = append(closers, producer.Close)
		deps.Events = producer
	}

	return deps, cleanup, nil
}

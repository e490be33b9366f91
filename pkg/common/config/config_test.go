package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WAREHOUSE_DRIVER", "")
	cfg := Load()
	assert.Equal(t, WarehouseSQLite, cfg.WarehouseDriver)
	assert.Equal(t, "parquet", cfg.RawFormat)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.FeatureCacheTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("TRAIN_MODELS", "false")
	t.Setenv("AGGREGATION_WORKERS", "8")

	cfg := Load()
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.TrainModels)
	assert.Equal(t, 8, cfg.AggregationWorkers)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := []byte(`
raw_data_dir: /srv/raw
raw_format: csv
warehouse_driver: postgres
feature_cache_ttl: 30m
train_models: false
aggregation_workers: 0
departments: [Cardiology, Emergency]
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/raw", cfg.RawDataDir)
	assert.Equal(t, "csv", cfg.RawFormat)
	assert.Equal(t, WarehousePostgres, cfg.WarehouseDriver)
	assert.Equal(t, 30*time.Minute, cfg.FeatureCacheTTL)
	assert.False(t, cfg.TrainModels)
	assert.Equal(t, 1, cfg.AggregationWorkers)
	assert.Equal(t, []string{"Cardiology", "Emergency"}, cfg.Departments)
}

func TestLoadFileRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("warehouse_driver: duckdb\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duckdb")
}

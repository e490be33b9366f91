package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	WarehouseSQLite   = "sqlite"
	WarehousePostgres = "postgres"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Pipeline paths
	RawDataDir   string
	ProcessedDir string
	ArtifactDir  string
	RawFormat    string // parquet or csv

	// Warehouse
	WarehouseDriver string
	SQLitePath      string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	RunTopic     string

	// Feature Store
	FeatureOnlinePrefix string
	FeatureCacheTTL     time.Duration

	// Cleaning
	Departments []string // closed department vocabulary; empty accepts any

	// Pipeline toggles
	AggregationWorkers int
	TrainModels        bool
	PublishEvents      bool
	MaterializeOnline  bool
	RecordRuns         bool
}

// overlay is the subset of settings a pipeline YAML file may override.
type overlay struct {
	RawDataDir          *string        `yaml:"raw_data_dir"`
	ProcessedDir        *string        `yaml:"processed_dir"`
	ArtifactDir         *string        `yaml:"artifact_dir"`
	RawFormat           *string        `yaml:"raw_format"`
	WarehouseDriver     *string        `yaml:"warehouse_driver"`
	SQLitePath          *string        `yaml:"sqlite_path"`
	RunTopic            *string        `yaml:"run_topic"`
	FeatureOnlinePrefix *string        `yaml:"feature_online_prefix"`
	FeatureCacheTTL     *time.Duration `yaml:"feature_cache_ttl"`
	Departments         []string       `yaml:"departments"`
	AggregationWorkers  *int           `yaml:"aggregation_workers"`
	TrainModels         *bool          `yaml:"train_models"`
	PublishEvents       *bool          `yaml:"publish_events"`
	MaterializeOnline   *bool          `yaml:"materialize_online"`
	RecordRuns          *bool          `yaml:"record_runs"`
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8000"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		RawDataDir:   getEnv("RAW_DATA_DIR", "data/raw"),
		ProcessedDir: getEnv("PROCESSED_DATA_DIR", "data/processed"),
		ArtifactDir:  getEnv("ARTIFACT_DIR", "models"),
		RawFormat:    getEnv("RAW_FORMAT", "parquet"),

		WarehouseDriver: getEnv("WAREHOUSE_DRIVER", WarehouseSQLite),
		SQLitePath:      getEnv("WAREHOUSE_SQLITE_PATH", "data/hospital_warehouse.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "hospital"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "hospital123"),
		PostgresDB:       getEnv("POSTGRES_DB", "hospital_insights"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "hospital-insights"),
		RunTopic:     getEnv("PIPELINE_RUN_TOPIC", "pipeline-runs"),

		FeatureOnlinePrefix: getEnv("FEATURE_ONLINE_PREFIX", "features:patient:"),
		FeatureCacheTTL:     getDuration("FEATURE_CACHE_TTL", 24*time.Hour),

		Departments: getStringSliceEnv("DEPARTMENTS", nil),

		AggregationWorkers: getIntEnv("AGGREGATION_WORKERS", 4),
		TrainModels:        getBoolEnv("TRAIN_MODELS", true),
		PublishEvents:      getBoolEnv("PUBLISH_EVENTS", false),
		MaterializeOnline:  getBoolEnv("MATERIALIZE_ONLINE", false),
		RecordRuns:         getBoolEnv("RECORD_RUNS", false),
	}
}

// LoadFile reads the environment and then applies the YAML file at path.
// An empty path falls back to PIPELINE_CONFIG; no file means env only.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		path = os.Getenv("PIPELINE_CONFIG")
	}
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	ov.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.WarehouseDriver {
	case WarehouseSQLite, WarehousePostgres:
	default:
		return fmt.Errorf("unsupported warehouse driver %q", c.WarehouseDriver)
	}
	switch c.RawFormat {
	case "parquet", "csv":
	default:
		return fmt.Errorf("unsupported raw format %q", c.RawFormat)
	}
	if c.AggregationWorkers < 1 {
		c.AggregationWorkers = 1
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}

func (o overlay) apply(c *Config) {
	setString(&c.RawDataDir, o.RawDataDir)
	setString(&c.ProcessedDir, o.ProcessedDir)
	setString(&c.ArtifactDir, o.ArtifactDir)
	setString(&c.RawFormat, o.RawFormat)
	setString(&c.WarehouseDriver, o.WarehouseDriver)
	setString(&c.SQLitePath, o.SQLitePath)
	setString(&c.RunTopic, o.RunTopic)
	setString(&c.FeatureOnlinePrefix, o.FeatureOnlinePrefix)
	if o.FeatureCacheTTL != nil {
		c.FeatureCacheTTL = *o.FeatureCacheTTL
	}
	if len(o.Departments) > 0 {
		c.Departments = o.Departments
	}
	if o.AggregationWorkers != nil {
		c.AggregationWorkers = *o.AggregationWorkers
	}
	setBool(&c.TrainModels, o.TrainModels)
	setBool(&c.PublishEvents, o.PublishEvents)
	setBool(&c.MaterializeOnline, o.MaterializeOnline)
	setBool(&c.RecordRuns, o.RecordRuns)
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

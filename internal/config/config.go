// Package config defines all configuration structures for NERRecon.  No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PostprocessConfig controls the raw -> canonical conversion.
type PostprocessConfig struct {
	Adjacency      string `mapstructure:"adjacency"` // "touching" | "lenient"
	EndShift       int    `mapstructure:"end_shift"`
	ThresholdsFile string `mapstructure:"thresholds_file"`
}

// RulesConfig controls the span extension rules.
type RulesConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RecheckOverlaps bool `mapstructure:"recheck_overlaps"`
	Window          int  `mapstructure:"window"`
}

// ReconcileConfig controls ensemble reconciliation.
type ReconcileConfig struct {
	Workers       int    `mapstructure:"workers"`
	Policy        string `mapstructure:"policy"`
	PolicyFile    string `mapstructure:"policy_file"`
	StripMetadata bool   `mapstructure:"strip_metadata"`
	// Sources maps source names to document-set keys in the configured
	// storage backend.  Raw sources are post-processed before reconciliation.
	Sources    map[string]string `mapstructure:"sources"`
	RawSources map[string]string `mapstructure:"raw_sources"`
	Output     string            `mapstructure:"output"`
	Timeout    time.Duration     `mapstructure:"timeout"`
}

// OutputConfig controls canonical JSON output.
type OutputConfig struct {
	IncludeScores bool   `mapstructure:"include_scores"`
	Indent        string `mapstructure:"indent"`
}

// StorageConfig selects where document sets are read and written.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "file" | "minio"
	BaseDir string `mapstructure:"base_dir"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	RequestTopic  string        `mapstructure:"request_topic"`
	ResultTopic   string        `mapstructure:"result_topic"`
	DLQTopic      string        `mapstructure:"dlq_topic"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	StartOffset   string        `mapstructure:"start_offset"` // "earliest" | "latest"
	CommitTimeout time.Duration `mapstructure:"commit_timeout"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every component reads its
// settings from the relevant sub-struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         logging.LogConfig `mapstructure:"log"`
	Postprocess PostprocessConfig `mapstructure:"postprocess"`
	Rules       RulesConfig       `mapstructure:"rules"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Output      OutputConfig      `mapstructure:"output"`
	Storage     StorageConfig     `mapstructure:"storage"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	OpenSearch  OpenSearchConfig  `mapstructure:"opensearch"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.  Optional backends are only
// checked when enabled.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Postprocess
	switch c.Postprocess.Adjacency {
	case "touching", "lenient":
	default:
		return fmt.Errorf("config: postprocess.adjacency %q is invalid; expected touching|lenient", c.Postprocess.Adjacency)
	}

	// Rules
	if c.Rules.Window < 1 {
		return fmt.Errorf("config: rules.window must be ≥ 1, got %d", c.Rules.Window)
	}

	// Reconcile
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("config: reconcile.workers must be ≥ 1, got %d", c.Reconcile.Workers)
	}

	// Storage
	switch c.Storage.Backend {
	case "file":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("config: storage.base_dir is required for the file backend")
		}
	case "minio":
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required for the minio backend")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required for the minio backend")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected file|minio", c.Storage.Backend)
	}

	// Database
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	// OpenSearch
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must contain at least one address")
	}

	return nil
}

//Personal.AI order the ending

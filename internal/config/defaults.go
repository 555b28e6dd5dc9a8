package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultAdjacency = "lenient"
	DefaultEndShift  = 0

	DefaultRuleWindow = 20

	DefaultWorkers = 8
	DefaultPolicy  = "ensemble-1"

	DefaultStorageBackend = "file"
	DefaultStorageDir     = "."

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "nerrecon"
	DefaultDBMaxConns = 10

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "nerrecon-worker"
	DefaultRequestTopic = "nerrecon.reconcile.requests"
	DefaultResultTopic  = "nerrecon.reconcile.results"
	DefaultDLQTopic     = "nerrecon.reconcile.dlq"

	DefaultOpenSearchIndexPrefix = "nerrecon"

	DefaultMetricsNamespace = "nerrecon"
	DefaultMetricsPath      = "/metrics"
)

// setViperDefaults registers defaults for fields whose zero value is a valid
// explicit setting, so ApplyDefaults cannot fill them.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("postprocess.end_shift", DefaultEndShift)
	v.SetDefault("rules.enabled", true)
}

// ApplyDefaults fills every zero-value field in cfg with the default.  Fields
// already set by the caller are left unchanged so that explicit configuration
// always wins.  EndShift and Rules.Enabled are defaulted by the loader.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 256 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Postprocess / rules / reconcile ───────────────────────────────────────
	if cfg.Postprocess.Adjacency == "" {
		cfg.Postprocess.Adjacency = DefaultAdjacency
	}
	if cfg.Rules.Window == 0 {
		cfg.Rules.Window = DefaultRuleWindow
	}
	if cfg.Reconcile.Workers == 0 {
		cfg.Reconcile.Workers = DefaultWorkers
	}
	if cfg.Reconcile.Policy == "" {
		cfg.Reconcile.Policy = DefaultPolicy
	}
	if cfg.Reconcile.Timeout == 0 {
		cfg.Reconcile.Timeout = 30 * time.Minute
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.BaseDir == "" {
		cfg.Storage.BaseDir = DefaultStorageDir
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "nerrecon:"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 10 * time.Minute
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = time.Hour
	}
	// DB is an int; 0 is a valid explicit value and also the default.

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultResultTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = "earliest"
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if cfg.OpenSearch.BulkBatchSize == 0 {
		cfg.OpenSearch.BulkBatchSize = 500
	}
	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = DefaultOpenSearchIndexPrefix
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

//Personal.AI order the ending

package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "NERRECON"

// newViper builds a pre-configured Viper instance: YAML file type,
// NERRECON_ env prefix, automatic env binding, and a key replacer that maps
// "." → "_" so that "postprocess.end_shift" resolves to
// "NERRECON_POSTPROCESS_END_SHIFT".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	bindEnvKeys(v)
	return v
}

// Load reads the YAML file at configPath, merges any NERRECON_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  An empty configPath behaves like LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from NERRECON_* environment variables
// and defaults, with no config file required.
//
//	NERRECON_<SECTION>_<FIELD>   e.g.  NERRECON_STORAGE_BACKEND, NERRECON_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// bindEnvKeys makes env overrides visible to Unmarshal for keys the config
// file does not mention.  AutomaticEnv alone only answers explicit Get calls.
func bindEnvKeys(v *viper.Viper) {
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
}

var envKeys = []string{
	"server.port", "server.mode",
	"log.level", "log.format",
	"postprocess.adjacency", "postprocess.end_shift", "postprocess.thresholds_file",
	"rules.enabled", "rules.recheck_overlaps", "rules.window",
	"reconcile.workers", "reconcile.policy", "reconcile.policy_file", "reconcile.strip_metadata", "reconcile.output",
	"output.include_scores", "output.indent",
	"storage.backend", "storage.base_dir",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.prefix", "minio.use_ssl",
	"database.enabled", "database.host", "database.port", "database.user", "database.password", "database.db_name", "database.ssl_mode",
	"redis.enabled", "redis.addr", "redis.password", "redis.db",
	"kafka.enabled", "kafka.brokers", "kafka.group_id",
	"opensearch.enabled", "opensearch.addresses", "opensearch.user", "opensearch.password",
	"metrics.enabled",
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed Config
// whenever the file changes on disk.  Callers apply only the safe subset of
// changes at runtime (log level, rule toggles, thresholds file).
//
// Watch is non-blocking.  A change that fails to parse or validate is passed
// to onError, when set, and onChange is not called.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; callers should call Load first.
	_ = v.ReadInConfig()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad is a convenience wrapper around Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending

// Package app wires the configured backends into the reconciliation service.
// Every binary (CLI, API server, worker) builds its dependencies here.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/NERRecon/internal/application/reconciliation"
	"github.com/turtacn/NERRecon/internal/config"
	"github.com/turtacn/NERRecon/internal/domain/annotation"
	"github.com/turtacn/NERRecon/internal/infrastructure/database/postgres"
	"github.com/turtacn/NERRecon/internal/infrastructure/database/redis"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NERRecon/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/file"
	"github.com/turtacn/NERRecon/internal/infrastructure/storage/minio"
	"github.com/turtacn/NERRecon/internal/intelligence/ensemble"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendMinIO = "minio"
)

// Check is a named health probe for one backend.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Infrastructure holds the clients built from configuration.  Optional
// backends that are disabled stay nil.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Store annotation.SetStore
	MinIO *minio.MinIOClient

	Pool *pgxpool.Pool
	Runs *postgres.RunRepository

	Redis *redis.Client
	Locks *redis.LockFactory
	Cache redis.Cache

	OpenSearch *opensearch.Client
	Indexer    *opensearch.Indexer
	Searcher   *opensearch.Searcher

	checks  []Check
	closers []func()
}

// Option adjusts what New builds.
type Option func(*options)

type options struct {
	collector prometheus.MetricsCollector
}

// WithCollector uses c instead of building a collector from configuration.
func WithCollector(c prometheus.MetricsCollector) Option {
	return func(o *options) { o.collector = c }
}

// New connects every enabled backend.  On failure the backends connected so
// far are closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (infra *Infrastructure, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrNop(logger)
	infra = &Infrastructure{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			infra.Close()
			infra = nil
		}
	}()

	if err = infra.initMetrics(o.collector); err != nil {
		return infra, fmt.Errorf("metrics: %w", err)
	}
	if err = infra.initStore(ctx); err != nil {
		return infra, fmt.Errorf("storage: %w", err)
	}
	if cfg.Database.Enabled {
		if err = infra.initPostgres(); err != nil {
			return infra, fmt.Errorf("postgres: %w", err)
		}
	}
	if cfg.Redis.Enabled {
		if err = infra.initRedis(); err != nil {
			return infra, fmt.Errorf("redis: %w", err)
		}
	}
	if cfg.OpenSearch.Enabled {
		if err = infra.initOpenSearch(ctx); err != nil {
			return infra, fmt.Errorf("opensearch: %w", err)
		}
	}

	logger.Info("infrastructure initialized",
		logging.String("storage", cfg.Storage.Backend),
		logging.Bool("postgres", infra.Pool != nil),
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("opensearch", infra.OpenSearch != nil),
	)
	return infra, nil
}

func (i *Infrastructure) initMetrics(c prometheus.MetricsCollector) error {
	if c == nil && i.Config.Metrics.Enabled {
		var err error
		c, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            i.Config.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, i.Logger)
		if err != nil {
			return err
		}
	}
	if c == nil {
		c = prometheus.NewNoopCollector()
	}
	i.Collector = c
	i.Metrics = prometheus.NewAppMetrics(c)
	return nil
}

func (i *Infrastructure) initStore(ctx context.Context) error {
	switch i.Config.Storage.Backend {
	case BackendMinIO:
		mc := i.Config.MinIO
		client, err := minio.NewMinIOClient(ctx, &minio.MinIOConfig{
			Endpoint:        mc.Endpoint,
			AccessKeyID:     mc.AccessKey,
			SecretAccessKey: mc.SecretKey,
			UseSSL:          mc.UseSSL,
			Region:          mc.Region,
			Bucket:          mc.Bucket,
			Prefix:          mc.Prefix,
		}, i.Logger)
		if err != nil {
			return err
		}
		i.MinIO = client
		i.Store = minio.NewSetRepository(client, i.Logger)
		i.checks = append(i.checks, Check{Name: "minio", Fn: func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		}})
	case BackendFile, "":
		i.Store = file.NewStore(i.Config.Storage.BaseDir, i.Logger)
	default:
		return fmt.Errorf("unknown backend %q", i.Config.Storage.Backend)
	}
	return nil
}

func (i *Infrastructure) initPostgres() error {
	pool, err := postgres.NewConnectionPool(i.Config.Database, i.Logger)
	if err != nil {
		return err
	}
	i.Pool = pool
	i.Runs = postgres.NewRunRepository(pool, i.Logger)
	i.closers = append(i.closers, func() { postgres.Close(pool) })
	i.checks = append(i.checks, Check{Name: "postgres", Fn: func(ctx context.Context) error {
		return postgres.HealthCheck(ctx, pool, i.Logger)
	}})
	return nil
}

func (i *Infrastructure) initRedis() error {
	client, err := redis.NewClient(i.Config.Redis, i.Logger)
	if err != nil {
		return err
	}
	i.Redis = client
	i.Locks = redis.NewLockFactory(client, i.Logger, redis.WithLockTTL(i.Config.Redis.LockTTL))
	i.Cache = redis.NewRedisCache(client, i.Logger, redis.WithDefaultTTL(i.Config.Redis.CacheTTL))
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.checks = append(i.checks, Check{Name: "redis", Fn: client.Ping})
	return nil
}

func (i *Infrastructure) initOpenSearch(ctx context.Context) error {
	oc := i.Config.OpenSearch
	client, err := opensearch.NewClient(opensearch.ClientConfigFrom(oc), i.Logger)
	if err != nil {
		return err
	}
	i.OpenSearch = client
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.Indexer = opensearch.NewIndexer(client, opensearch.IndexerConfig{
		IndexPrefix:   oc.IndexPrefix,
		BulkBatchSize: oc.BulkBatchSize,
	}, i.Logger)
	i.Searcher = opensearch.NewSearcher(client, i.Indexer, i.Logger)
	if err := i.Indexer.EnsureIndex(ctx); err != nil {
		// The index is created again on the next start; exports fail until then.
		i.Logger.Warn("failed to ensure entity index", logging.Err(err))
	}
	i.checks = append(i.checks, Check{Name: "opensearch", Fn: client.Ping})
	return nil
}

// Checks returns the health probes of the connected backends.
func (i *Infrastructure) Checks() []Check {
	return append([]Check(nil), i.checks...)
}

// Service builds the reconciliation service over the connected backends.
// Extra policies are read from reconcile.policy_file when it is set.
func (i *Infrastructure) Service() (*reconciliation.Service, error) {
	var extra []*ensemble.Policy
	if path := i.Config.Reconcile.PolicyFile; path != "" {
		var err error
		if extra, err = ensemble.LoadPolicyFile(path); err != nil {
			return nil, err
		}
	}

	deps := reconciliation.Dependencies{
		Store:   i.Store,
		Metrics: i.Metrics,
		Logger:  i.Logger,
	}
	// Assigned one by one so that disabled backends stay untyped nils.
	if i.Runs != nil {
		deps.Runs = i.Runs
	}
	if i.Locks != nil {
		deps.Locker = i.Locks
	}
	if i.Cache != nil {
		deps.Cache = i.Cache
	}
	if i.Indexer != nil {
		deps.Indexer = i.Indexer
	}
	return reconciliation.NewService(deps, reconciliation.OptionsFromConfig(i.Config, extra...))
}

// Close releases every connected backend in reverse order.
func (i *Infrastructure) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
	i.closers = nil
	_ = i.Logger.Sync()
}

//Personal.AI order the ending
